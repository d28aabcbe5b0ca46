package order

import "motoparca-backend/internal/models"

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:    {models.OrderStatusDelivered},
}

var statusLabels = map[models.OrderStatus]string{
	models.OrderStatusPending:    "Beklemede",
	models.OrderStatusProcessing: "Hazırlanıyor",
	models.OrderStatusShipped:    "Kargoda",
	models.OrderStatusDelivered:  "Teslim Edildi",
	models.OrderStatusCancelled:  "İptal Edildi",
}

func ValidStatus(s models.OrderStatus) bool {
	_, ok := statusLabels[s]
	return ok
}

// CanTransition: delivered ve cancelled son durumlardır
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// restocks reports whether cancelling from s puts the items back on the shelf.
func restocks(s models.OrderStatus) bool {
	return s == models.OrderStatusPending || s == models.OrderStatusProcessing
}

func StatusLabel(s models.OrderStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func validPaymentMethod(m models.PaymentMethod) bool {
	switch m {
	case models.PaymentMethodCreditCard, models.PaymentMethodBankTransfer, models.PaymentMethodPaymentLink:
		return true
	}
	return false
}
