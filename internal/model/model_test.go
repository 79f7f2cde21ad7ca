package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress_ScanAcceptsBytesAndStrings(t *testing.T) {
	raw := `{"street":"Rua A","number":"10","city":"Campinas","state":"SP","zip_code":"13000-000"}`

	var fromBytes, fromString Address
	require.NoError(t, fromBytes.Scan([]byte(raw)))
	require.NoError(t, fromString.Scan(raw))

	assert.Equal(t, fromBytes, fromString)
	assert.Equal(t, "Campinas", fromBytes.City)

	var empty Address
	assert.NoError(t, empty.Scan(nil))
	assert.Error(t, empty.Scan(42))
}

func TestStringList_NilStoresEmptyArray(t *testing.T) {
	var l StringList
	v, err := l.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestStatusValidation(t *testing.T) {
	assert.True(t, OrderStatusShipped.Valid())
	assert.False(t, OrderStatus("lost").Valid())
	assert.True(t, PaymentStatusRefunded.Valid())
	assert.False(t, PaymentStatus("").Valid())
}

func TestOrderItem_Subtotal(t *testing.T) {
	item := OrderItem{Price: decimal.RequireFromString("10.50"), Quantity: 3}
	assert.True(t, decimal.RequireFromString("31.50").Equal(item.Subtotal()))
}
