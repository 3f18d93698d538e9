package wa

import (
	"context"
	"fmt"
	"strings"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.uber.org/zap"
)

// pair runs the QR linking flow with exclusive use of the terminal.
func (b *Backend) pair(ctx context.Context, qrChan <-chan whatsmeow.QRChannelItem) {
	defer b.wg.Done()
	b.emit(protocol.UIControlRequested{Take: true})
	ok := b.scan(ctx, qrChan)
	b.emit(protocol.UIControlRequested{Take: false})
	if !ok {
		b.emit(protocol.Connected{Success: false})
	}
}

func (b *Backend) scan(ctx context.Context, qrChan <-chan whatsmeow.QRChannelItem) bool {
	cancelled := func() bool {
		_, _ = fmt.Fprintln(b.out, "\n  Pairing cancelled.")
		return false
	}
	// Connect must be called after GetQRChannel.
	_ = b.phase.Transition(Connecting)
	if err := b.client.Connect(); err != nil {
		b.logger.Error("whatsapp connect failed", zap.Error(err))
		_, _ = fmt.Fprintf(b.out, "\n  Connection failed: %v\n", err)
		return false
	}
	for {
		var item whatsmeow.QRChannelItem
		var open bool
		select {
		case <-ctx.Done():
			return cancelled()
		case item, open = <-qrChan:
		}
		if !open {
			return false
		}
		switch item.Event {
		case "code":
			_, _ = fmt.Fprintf(b.out, "\033[2J\033[H\n  Scan this QR code with WhatsApp (%s):\n\n%s\n  Waiting for authentication...\n",
				b.id, renderQR(item.Code))
		case "success":
			b.logger.Info("whatsapp device linked")
			_, _ = fmt.Fprintln(b.out, "\n  Linked.")
			return true
		case "timeout":
			b.logger.Warn("whatsapp pairing timed out")
			_, _ = fmt.Fprintln(b.out, "\n  QR code timed out.")
			return false
		default:
			if item.Error != nil {
				b.logger.Error("whatsapp pairing failed", zap.Error(item.Error))
				_, _ = fmt.Fprintf(b.out, "\n  Pairing failed: %v\n", item.Error)
				return false
			}
		}
	}
}

// renderQR converts a string to a compact QR code using Unicode half-block
// characters. Two bitmap rows become one terminal line.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}
	bitmap := qr.Bitmap()

	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		sb.WriteString("  ")
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bot := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
