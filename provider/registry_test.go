package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderRegistry_Register(t *testing.T) {
	registry := NewProviderRegistry()

	registry.Register("test-driver", newStubFactory(&stubDriver{}), nil)

	factory, err := registry.Get("test-driver")
	assert.NoError(t, err)
	assert.NotNil(t, factory)
}

func TestProviderRegistry_Names(t *testing.T) {
	registry := NewProviderRegistry()

	assert.Empty(t, registry.Names())

	registry.Register("poolam", newStubFactory(&stubDriver{}), nil)
	registry.Register("digipay", newStubFactory(&stubDriver{}), nil)
	registry.Register("jibit", newStubFactory(&stubDriver{}), nil)

	assert.Equal(t, []string{"digipay", "jibit", "poolam"}, registry.Names())
}

func TestProviderRegistry_Get_NotFound(t *testing.T) {
	registry := NewProviderRegistry()

	factory, err := registry.Get("non-existent")
	assert.Error(t, err)
	assert.Nil(t, factory)
	assert.Contains(t, err.Error(), "is not registered")
	assert.ErrorIs(t, err, ErrDriverNotRegistered)

	_, err = registry.New("non-existent", NewInvoice(1000), nil)
	assert.Error(t, err)

	_, err = registry.RequiredConfig("non-existent")
	assert.Error(t, err)
}

func TestProviderRegistry_New(t *testing.T) {
	registry := NewProviderRegistry()

	var gotSettings map[string]string
	var gotInvoice *Invoice
	registry.Register("stub", func(invoice *Invoice, settings map[string]string) (Driver, error) {
		gotInvoice = invoice
		gotSettings = settings
		return &stubDriver{invoice: invoice}, nil
	}, nil)

	inv := NewInvoice(5000)
	driver, err := registry.New("stub", inv, map[string]string{"merchantId": "m-1"})
	require.NoError(t, err)
	assert.NotNil(t, driver)
	assert.Same(t, inv, gotInvoice)
	assert.Equal(t, "m-1", gotSettings["merchantId"])
}

func TestProviderRegistry_RequiredConfig(t *testing.T) {
	registry := NewProviderRegistry()
	fields := []ConfigField{
		{Key: "merchantId", Required: true, Type: "string"},
		{Key: "callbackUrl", Required: true, Type: "url"},
	}
	registry.Register("stub", newStubFactory(&stubDriver{}), fields)

	got, err := registry.RequiredConfig("stub")
	require.NoError(t, err)
	assert.Equal(t, fields, got)

	// returned slice is a copy
	got[0].Key = "changed"
	again, _ := registry.RequiredConfig("stub")
	assert.Equal(t, "merchantId", again[0].Key)
}

func TestDefaultRegistry(t *testing.T) {
	Register("default-test", newStubFactory(&stubDriver{}), nil)

	factory, err := Get("default-test")
	assert.NoError(t, err)
	assert.NotNil(t, factory)

	driver, err := New("default-test", NewInvoice(100), nil)
	assert.NoError(t, err)
	assert.NotNil(t, driver)

	assert.Contains(t, DefaultRegistry.Names(), "default-test")
}
