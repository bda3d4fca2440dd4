package telegram

import (
	"errors"
	"fmt"

	"github.com/gotd/td/tgerr"

	"wall_go/models"
)

// classify относит ошибку Telegram к временной или окончательной.
// FLOOD_WAIT и сетевые сбои повторяются, отказ в доступе или неверный запрос нет.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrDeliveryTransient) || errors.Is(err, models.ErrDeliveryTerminal) {
		return err
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return fmt.Errorf("%w: flood wait %s: %w", models.ErrDeliveryTransient, d, err)
	}
	if rpcErr, ok := tgerr.As(err); ok {
		switch rpcErr.Code {
		case 400, 403, 406:
			return fmt.Errorf("%w: %w", models.ErrDeliveryTerminal, err)
		}
	}
	return fmt.Errorf("%w: %w", models.ErrDeliveryTransient, err)
}
