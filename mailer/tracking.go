package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"net/mail"
	texttemplate "text/template"
	"time"
)

const trackingHTML = `<!DOCTYPE html>
<html>
<body style="font-family: 'Segoe UI', Tahoma, sans-serif; color: #1e293b; background: #f8fafc;">
  <div style="max-width: 600px; margin: 0 auto;">
    <div style="background: #1e3a8a; color: white; padding: 40px 20px; text-align: center;">
      <h1 style="margin: 0;">Aspirasi Diterima!</h1>
      <p style="margin: 10px 0 0 0;">Kode tracking Anda telah siap</p>
    </div>
    <div style="padding: 40px 30px; background: white;">
      <p>Halo,</p>
      <p>Aspirasi Anda telah berhasil kami terima. Silakan simpan kode tracking di bawah ini untuk memantau status tindak lanjut kami.</p>
      <div style="background: #f1f5f9; padding: 30px; text-align: center; border-radius: 16px;">
        <div style="color: #64748b; font-size: 11px; text-transform: uppercase;">Kode Tracking Milik Anda</div>
        <div style="font-size: 42px; font-weight: 900; color: #1e40af; font-family: 'Courier New', monospace;">{{.Code}}</div>
      </div>
      <p style="font-size: 14px;">Kunjungi website <strong>{{.Site}}</strong>, pilih menu <strong>Cek Status</strong>, dan masukkan kode di atas.</p>
    </div>
    <div style="text-align: center; padding: 30px; color: #94a3b8; font-size: 12px;">
      <p>Email ini dikirim secara otomatis. Mohon tidak membalas email ini.</p>
      <p>&copy; {{.Year}} {{.Org}}</p>
    </div>
  </div>
</body>
</html>
`

const trackingText = `Aspirasi Anda Telah Diterima!
============================

Halo, aspirasi Anda telah kami terima dengan baik.
Gunakan kode tracking di bawah ini untuk memantau status tindak lanjut:

KODE TRACKING: {{.Code}}

Simpan kode ini untuk digunakan pada menu "Cek Status" di {{.Site}}.

Terima kasih atas partisipasi Anda.

(c) {{.Year}} {{.Org}}
`

var (
	htmlTmpl = htmltemplate.Must(htmltemplate.New("tracking.html").Parse(trackingHTML))
	textTmpl = texttemplate.Must(texttemplate.New("tracking.txt").Parse(trackingText))
)

type trackingData struct {
	Code string
	Site string
	Org  string
	Year int
}

// TrackingNotifier monta e envia o e-mail de código de rastreio.
type TrackingNotifier struct {
	Sender Sender
	Site   string
	Org    string
	Now    func() time.Time
}

// ErrInvalidAddress indica destinatário malformado.
var ErrInvalidAddress = errors.New("invalid email address")

// Compose devolve a mensagem sem enviar.
func (n TrackingNotifier) Compose(to, code string) (Message, error) {
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	data := trackingData{Code: code, Site: n.Site, Org: n.Org, Year: now().Year()}
	if data.Site == "" {
		data.Site = "Suara MPA"
	}
	if data.Org == "" {
		data.Org = "MPA HIMAKOM POLBAN"
	}

	var html, text bytes.Buffer
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return Message{}, err
	}
	if err := textTmpl.Execute(&text, data); err != nil {
		return Message{}, err
	}

	return Message{
		To:      addr.Address,
		Subject: "Kode Tracking Aspirasi Anda - " + code,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

func (n TrackingNotifier) SendTrackingCode(ctx context.Context, to, code string) error {
	msg, err := n.Compose(to, code)
	if err != nil {
		return err
	}
	if n.Sender == nil {
		return ErrNotConfigured
	}
	return n.Sender.Send(ctx, msg)
}
