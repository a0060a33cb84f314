package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"checkoutctl"}, args...))
	return out.String(), err
}

func TestFieldCommands(t *testing.T) {
	out, err := runApp(t, "cpf", "52998224725")
	require.NoError(t, err)
	assert.Equal(t, "529.982.247-25\tok\n", out)

	out, err = runApp(t, "phone", "119876")
	require.NoError(t, err)
	assert.Contains(t, out, "(11) 9876\tinvalid (too_short:")

	out, err = runApp(t, "card", "5555666677778888")
	require.NoError(t, err)
	assert.Contains(t, out, "5555 6666 7777 8888\tok")
	assert.Contains(t, out, "brand\tmastercard")
	assert.Contains(t, out, "cvv\tCVV (3)")

	out, err = runApp(t, "expiry", "--now", "2026-10-19", "1126")
	require.NoError(t, err)
	assert.Equal(t, "11/26\tok\n", out)

	out, err = runApp(t, "email", "ana@hotmial.com")
	require.NoError(t, err)
	assert.Contains(t, out, "did you mean\thotmail.com")
}

func TestFieldCommandJSON(t *testing.T) {
	out, err := runApp(t, "card", "--json", "378282246310005")
	require.NoError(t, err)

	var report fieldReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "3782 8224 6310 005", report.Value)
	assert.True(t, report.OK)
	assert.Equal(t, "amex", string(report.Brand))
	assert.Equal(t, "CID (4)", report.CVV)
}

func TestFieldCommandRequiresOneValue(t *testing.T) {
	_, err := runApp(t, "cpf")
	require.Error(t, err)
}

func TestInstallmentsAndCurrency(t *testing.T) {
	out, err := runApp(t, "installments", "397")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "1x de R$ 397,00 (sem juros)"))
	assert.True(t, strings.HasPrefix(lines[5], "12x de R$ 37,52 (com juros)"))

	out, err = runApp(t, "currency", "1234,5")
	require.NoError(t, err)
	assert.Equal(t, "R$ 1.234,50\n", out)

	_, err = runApp(t, "installments", "abc")
	require.Error(t, err)
}

func TestResolveCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-123", r.URL.Query().Get("token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"valido":true,"nome":"Maria Silva","email":"maria@gmail.com","preco_oferta":397}`))
	}))
	defer srv.Close()

	out, err := runApp(t, "resolve", "--endpoint", srv.URL, "tok-123")
	require.NoError(t, err)
	assert.Contains(t, out, `"valido": true`)
	assert.Contains(t, out, `"nome": "Maria Silva"`)
}
