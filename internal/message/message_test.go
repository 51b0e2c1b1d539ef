package message

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpay/ledgerd/internal/models"
)

var now = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func raw(lines ...string) models.RawMessage {
	return models.RawMessage{ID: "m1", Raw: []byte(strings.Join(lines, "\r\n"))}
}

func TestDecodePrefersHTMLPart(t *testing.T) {
	msg := Decode(raw(
		"From: Chase <no.reply.alerts@chase.com>",
		"Subject: =?UTF-8?Q?Jordan_Lee_sent_you_money_with_Zelle=C2=AE?=",
		"Date: Tue, 03 Mar 2026 09:15:00 -0500",
		"Message-ID: <abc123@chase.com>",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"plain version",
		"--b1",
		"Content-Type: text/html; charset=utf-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		`<td class=3D"amt">$125.00</td><p>long =`,
		"line</p>",
		"--b1--",
		"",
	), now)

	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "Jordan Lee sent you money with Zelle®", msg.Subject)
	assert.Equal(t, "no.reply.alerts@chase.com", msg.SenderAddress())
	assert.Equal(t, "abc123@chase.com", msg.MessageID)
	assert.True(t, msg.Date.Equal(time.Date(2026, 3, 3, 14, 15, 0, 0, time.UTC)))
	assert.Contains(t, msg.Body, `<td class="amt">$125.00</td>`)
	assert.Contains(t, msg.Body, "long line")
	assert.NotContains(t, msg.Body, "plain version")
}

func TestDecodeFallsBackToPlainText(t *testing.T) {
	msg := Decode(raw(
		"From: Venmo <venmo@venmo.com>",
		"Subject: Sam Ortiz paid you $20.00",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner"`,
		"",
		"--inner",
		"Content-Type: text/plain; charset=iso-8859-1",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Note: caf=E9",
		"--inner--",
		"--outer",
		"Content-Type: application/pdf",
		"Content-Transfer-Encoding: base64",
		"",
		"JVBERi0=",
		"--outer--",
		"",
	), now)

	assert.Equal(t, "Note: café", strings.TrimSpace(msg.Body))
	assert.Equal(t, now, msg.Date)
}

func TestDecodeFindsHTMLInNestedPart(t *testing.T) {
	msg := Decode(raw(
		"From: cash@square.com",
		"Subject: Cash App",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		"Content-Type: text/plain",
		"",
		"first plain",
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner"`,
		"",
		"--inner",
		"Content-Type: text/html",
		"Content-Transfer-Encoding: base64",
		"",
		"PGI+aGk8L2I+",
		"--inner--",
		"--outer--",
		"",
	), now)

	assert.Equal(t, "<b>hi</b>", msg.Body)
}

func TestDecodeSinglePartBody(t *testing.T) {
	msg := Decode(raw(
		"From: alerts@chime.com",
		"Subject: Riva Brewer just sent you money",
		"Date: not a date",
		"",
		"You received $40.00 =",
		"from Riva Brewer =3D done",
	), now)

	assert.Equal(t, "You received $40.00 from Riva Brewer = done", msg.Body)
	assert.Equal(t, now, msg.Date)
}

func TestDecodeNeverFailsOnGarbage(t *testing.T) {
	msg := Decode(models.RawMessage{ID: "x", Raw: []byte("\xff\xfe not a header\n\nbody =ZZ")}, now)
	require.NotNil(t, msg)
	assert.Equal(t, "x", msg.ID)
	assert.True(t, strings.Contains(msg.Body, "=ZZ"))
	assert.True(t, strings.Contains(msg.Body, "�"))
}

func TestUnescape(t *testing.T) {
	cases := map[string]string{
		"a=\r\nb":    "ab",
		"a=\nb":      "ab",
		"=3D":        "=",
		"=e2=80=99":  "’",
		"x = y":      "x = y",
		"trailing =": "trailing =",
		"=4":         "=4",
	}
	for in, want := range cases {
		assert.Equal(t, want, string(Unescape([]byte(in))), in)
	}
}

func TestCleanReplacesInvalidBytes(t *testing.T) {
	assert.Equal(t, "ok �", Clean([]byte("ok =FF")))
}
