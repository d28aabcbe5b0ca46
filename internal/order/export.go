package order

import (
	"motoparca-backend/internal/httpx"
	"motoparca-backend/internal/models"

	"github.com/xuri/excelize/v2"
)

const ordersSheet = "Siparişler"

var ordersHeader = []string{
	"Sipariş No", "Tarih", "Müşteri", "Durum", "Ödeme", "Ara Toplam", "Kargo", "Toplam", "İl", "İlçe", "Telefon",
}

var paymentLabels = map[models.PaymentMethod]string{
	models.PaymentMethodCreditCard:   "Kredi Kartı",
	models.PaymentMethodBankTransfer: "Havale/EFT",
	models.PaymentMethodPaymentLink:  "Ödeme Linki",
}

func buildOrdersSheet(orders []models.Order) (*excelize.File, error) {
	f, err := httpx.NewSheet(ordersSheet, ordersHeader)
	if err != nil {
		return nil, err
	}

	for i, o := range orders {
		customer := o.ShipFullName
		if o.Customer.ID != 0 {
			customer = o.Customer.FullName()
		}
		row := []any{
			o.OrderNumber,
			o.CreatedAt.Format("02.01.2006 15:04"),
			customer,
			StatusLabel(o.Status),
			paymentLabels[o.PaymentMethod],
			o.Subtotal.InexactFloat64(),
			o.ShippingCost.InexactFloat64(),
			o.Total.InexactFloat64(),
			o.ShipCity,
			o.ShipDistrict,
			o.ShipPhone,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(ordersSheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.SetColWidth(ordersSheet, "A", "A", 18)
	f.SetColWidth(ordersSheet, "C", "C", 24)
	return f, nil
}
