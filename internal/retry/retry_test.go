package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonesrussell/docspasta/internal/domain"
	"github.com/jonesrussell/docspasta/internal/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{
		InitialDelay: time.Millisecond,
		Multiplier:   2,
		Attempts: map[domain.ErrorKind]int{
			domain.KindTransient: 3,
			domain.KindTimeout:   2,
		},
	}
}

func TestDo(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "immediate success",
			errs:      []error{nil},
			wantCalls: 1,
		},
		{
			name: "transient recovers on third attempt",
			errs: []error{
				domain.NewError(domain.KindTransient, "flake"),
				domain.NewError(domain.KindTransient, "flake"),
				nil,
			},
			wantCalls: 3,
		},
		{
			name: "transient budget exhausted",
			errs: []error{
				domain.NewError(domain.KindTransient, "flake"),
				domain.NewError(domain.KindTransient, "flake"),
				domain.NewError(domain.KindTransient, "flake"),
			},
			wantCalls: 3,
			wantErr:   true,
		},
		{
			name: "timeout retried once",
			errs: []error{
				domain.NewError(domain.KindTimeout, "slow"),
				nil,
			},
			wantCalls: 2,
		},
		{
			name:      "http error not retried",
			errs:      []error{domain.NewError(domain.KindHTTPError, "status 500")},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "untagged error not retried",
			errs:      []error{errors.New("boom")},
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := fastPolicy().Do(context.Background(), func() error {
				err := tt.errs[calls]
				calls++
				return err
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fastPolicy().Do(ctx, func() error {
		calls++
		return domain.NewError(domain.KindTransient, "flake")
	})

	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
