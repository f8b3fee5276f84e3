package llm

import (
	"context"
	"errors"
	"fmt"
)

// FallbackBackend tries primary first and falls back on error.
type FallbackBackend struct {
	primary  Backend
	fallback Backend
}

func NewFallbackBackend(primary, fallback Backend) *FallbackBackend {
	return &FallbackBackend{primary: primary, fallback: fallback}
}

func (b *FallbackBackend) Primary() Backend { return b.primary }

func (b *FallbackBackend) Secondary() Backend { return b.fallback }

func (b *FallbackBackend) Name() string {
	switch {
	case b.primary != nil && b.fallback != nil:
		return b.primary.Name() + "+" + b.fallback.Name()
	case b.primary != nil:
		return b.primary.Name()
	case b.fallback != nil:
		return b.fallback.Name()
	default:
		return "none"
	}
}

func (b *FallbackBackend) Complete(ctx context.Context, req Request) (string, error) {
	if b.primary == nil {
		if b.fallback != nil {
			return b.fallback.Complete(ctx, req)
		}
		return "", fmt.Errorf("fallback backend misconfigured")
	}
	out, err := b.primary.Complete(ctx, req)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || b.fallback == nil {
		return "", err
	}
	out, fallbackErr := b.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		return "", fmt.Errorf("primary backend error: %w; fallback backend error: %v", err, fallbackErr)
	}
	return out, nil
}
