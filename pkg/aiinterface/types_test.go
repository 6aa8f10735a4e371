package aiinterface

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeOf(t *testing.T) {
	base := &ClientError{Type: ErrorTypeRateLimit, Message: "limite de requisições excedido"}

	t.Run("直接错误", func(t *testing.T) {
		require.Equal(t, ErrorTypeRateLimit, TypeOf(base))
	})

	t.Run("被包装的错误仍可识别", func(t *testing.T) {
		wrapped := fmt.Errorf("chamada ao modelo falhou: %w", base)
		require.Equal(t, ErrorTypeRateLimit, TypeOf(wrapped))
	})

	t.Run("非 ClientError 归为 unknown", func(t *testing.T) {
		require.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("qualquer outra falha")))
		require.Equal(t, ErrorTypeUnknown, TypeOf(nil))
	})
}
