package grouporder

import (
	"context"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/models"
)

// InviteLink is the page participants open to join orderID.
func InviteLink(baseURL, orderID string) string {
	return strings.TrimRight(baseURL, "/") + "/group-orders/" + orderID + "/join"
}

// InviteQR renders the order's join link as a PNG QR code. Only orders that
// still accept participants get one.
func (s *Service) InviteQR(ctx context.Context, orderID, baseURL string, size int) ([]byte, error) {
	order, err := s.DB.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.New(apperr.KindNotFound, "shared order %s not found", orderID)
	}
	if order.Status != models.StatusOpen {
		return nil, apperr.New(apperr.KindInvalidState, "shared order is %s, not open", order.Status)
	}
	if order.DeadlinePassed(s.now()) {
		return nil, apperr.ErrDeadlinePassed
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(InviteLink(baseURL, orderID), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("generate invite qr: %w", err)
	}
	return png, nil
}
