package alertcenter

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoskin/headsup/internal/notification"
)

func TestAuthorizationModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mode        string
		startStatus notification.AuthorizationStatus
		wantGranted bool
		wantStatus  notification.AuthorizationStatus
	}{
		{
			name:        "granted mode is authorized up front",
			mode:        AuthorizationGranted,
			startStatus: notification.AuthorizationAuthorized,
			wantGranted: true,
			wantStatus:  notification.AuthorizationAuthorized,
		},
		{
			name:        "empty mode defaults to granted",
			mode:        "",
			startStatus: notification.AuthorizationAuthorized,
			wantGranted: true,
			wantStatus:  notification.AuthorizationAuthorized,
		},
		{
			name:        "denied mode refuses up front",
			mode:        AuthorizationDenied,
			startStatus: notification.AuthorizationDenied,
			wantGranted: false,
			wantStatus:  notification.AuthorizationDenied,
		},
		{
			name:        "prompt-grant resolves to provisional",
			mode:        AuthorizationPromptGrant,
			startStatus: notification.AuthorizationNotDetermined,
			wantGranted: true,
			wantStatus:  notification.AuthorizationProvisional,
		},
		{
			name:        "prompt-deny resolves to denied",
			mode:        AuthorizationPromptDeny,
			startStatus: notification.AuthorizationNotDetermined,
			wantGranted: false,
			wantStatus:  notification.AuthorizationDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			center := newTestCenter(t, &Config{AuthorizationMode: tt.mode})
			assert.Equal(t, tt.startStatus, center.AuthorizationStatus(ctx))

			granted, err := center.RequestAuthorization(ctx, notification.DefaultAuthorizationOptions)
			require.NoError(t, err)
			assert.Equal(t, tt.wantGranted, granted)
			assert.Equal(t, tt.wantStatus, center.AuthorizationStatus(ctx))

			// A second request returns the settled state without flipping it.
			granted, err = center.RequestAuthorization(ctx, notification.DefaultAuthorizationOptions)
			require.NoError(t, err)
			assert.Equal(t, tt.wantGranted, granted)
			assert.Equal(t, tt.wantStatus, center.AuthorizationStatus(ctx))
		})
	}
}

func TestAuthorizationNonProvisionalGrant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	center := newTestCenter(t, &Config{AuthorizationMode: AuthorizationPromptGrant})

	granted, err := center.RequestAuthorization(ctx, notification.AuthorizationOptions{
		Alert: true,
		Sound: true,
	})
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, notification.AuthorizationAuthorized, center.AuthorizationStatus(ctx))
}

func TestAuthorizationConcurrentRequestsAgree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	center := newTestCenter(t, &Config{AuthorizationMode: AuthorizationPromptGrant})

	const callers = 16
	results := make([]bool, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := range callers {
		go func() {
			defer wg.Done()
			granted, err := center.RequestAuthorization(ctx, notification.DefaultAuthorizationOptions)
			assert.NoError(t, err)
			results[i] = granted
		}()
	}
	wg.Wait()

	for i, granted := range results {
		assert.True(t, granted, "caller %d must observe the shared grant", i)
	}
	assert.Equal(t, notification.AuthorizationProvisional, center.AuthorizationStatus(ctx))
}
