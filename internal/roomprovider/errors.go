package roomprovider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"

	"github.com/twitchtv/twirp"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/errs"
)

// Kind classifies a room provider failure so callers can react without
// inspecting transport details.
type Kind int

const (
	KindOther Kind = iota
	KindUnreachable
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindNotFound:
		return "not_found"
	default:
		return "other"
	}
}

// Error is returned by every provider call that reached (or tried to reach) the network.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("room provider %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, KindOther when err is not a provider error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindOther
}

// IsUnreachable reports whether err means the provider could not be contacted.
func IsUnreachable(err error) bool { return KindOf(err) == KindUnreachable }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: classify(err), Err: err}
}

// classify maps twirp codes and transport failures to a Kind.
func classify(err error) Kind {
	var te twirp.Error
	if errors.As(err, &te) {
		switch te.Code() {
		case twirp.NotFound:
			return KindNotFound
		case twirp.Unavailable, twirp.DeadlineExceeded:
			return KindUnreachable
		}
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return KindUnreachable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindUnreachable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUnreachable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindUnreachable
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return KindUnreachable
	}
	return KindOther
}

func notConfigured(op string) error {
	return fmt.Errorf("%s: %w (set LIVEKIT_URL, LIVEKIT_API_KEY and LIVEKIT_API_SECRET)", op, errs.ErrConfiguration)
}
