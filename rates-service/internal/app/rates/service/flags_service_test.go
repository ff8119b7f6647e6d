package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockManifestFetcher struct {
	mock.Mock
}

func (m *mockManifestFetcher) FetchFlagsManifest(ctx context.Context, manifestURL string) (map[string]string, error) {
	args := m.Called(ctx, manifestURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

const testManifestURL = "https://flags.example/flags.json"

// ===================== FlagURL Tests =====================

func TestFlagURL_LoadsManifestOnce(t *testing.T) {
	// Arrange
	fetcher := new(mockManifestFetcher)
	fetcher.On("FetchFlagsManifest", mock.Anything, testManifestURL).
		Return(map[string]string{"mxn": "https://flags.example/mx.png", "ARS": "https://flags.example/ar.png"}, nil).Once()

	svc := NewFlagsService(fetcher, testManifestURL)

	// Act
	mxn, errMXN := svc.FlagURL(context.Background(), "MXN")
	ars, errARS := svc.FlagURL(context.Background(), "ars")

	// Assert
	require.NoError(t, errMXN)
	require.NoError(t, errARS)
	assert.Equal(t, "https://flags.example/mx.png", mxn)
	assert.Equal(t, "https://flags.example/ar.png", ars)
	fetcher.AssertNumberOfCalls(t, "FetchFlagsManifest", 1)
}

func TestFlagURL_WaitsForPendingLoad(t *testing.T) {
	release := make(chan time.Time)
	fetcher := new(mockManifestFetcher)
	fetcher.On("FetchFlagsManifest", mock.Anything, testManifestURL).
		WaitUntil(release).
		Return(map[string]string{"BRL": "https://flags.example/br.png"}, nil).Once()

	svc := NewFlagsService(fetcher, testManifestURL)

	results := make(chan string, 2)
	for i := 0; i < 2; i++ {
		go func() {
			url, err := svc.FlagURL(context.Background(), "BRL")
			assert.NoError(t, err)
			results <- url
		}()
	}

	close(release)
	for i := 0; i < 2; i++ {
		select {
		case url := <-results:
			assert.Equal(t, "https://flags.example/br.png", url)
		case <-time.After(time.Second):
			t.Fatal("FlagURL did not return")
		}
	}
	fetcher.AssertNumberOfCalls(t, "FetchFlagsManifest", 1)
}

func TestFlagURL_ReloadsAfterFailure(t *testing.T) {
	// Arrange
	fetcher := new(mockManifestFetcher)
	fetcher.On("FetchFlagsManifest", mock.Anything, testManifestURL).
		Return(nil, ErrDataFetchingFailed).Once()
	fetcher.On("FetchFlagsManifest", mock.Anything, testManifestURL).
		Return(map[string]string{"COP": "https://flags.example/co.png"}, nil).Once()

	svc := NewFlagsService(fetcher, testManifestURL)

	// Act - первая загрузка завершилась ошибкой
	svc.mu.Lock()
	first := svc.manifest
	svc.mu.Unlock()
	_, err := first.Wait(context.Background())
	require.NoError(t, err)

	url, err := svc.FlagURL(context.Background(), "COP")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "https://flags.example/co.png", url)
	fetcher.AssertNumberOfCalls(t, "FetchFlagsManifest", 2)
}

func TestFlagURL_Errors(t *testing.T) {
	t.Run("unknown currency", func(t *testing.T) {
		fetcher := new(mockManifestFetcher)
		fetcher.On("FetchFlagsManifest", mock.Anything, DefaultFlagsManifestURL).Return(map[string]string{}, nil)

		svc := NewFlagsService(fetcher, "")

		_, err := svc.FlagURL(context.Background(), "XYZ")
		assert.ErrorIs(t, err, ErrFlagNotFound)
	})

	t.Run("decode failure surfaces", func(t *testing.T) {
		fetcher := new(mockManifestFetcher)
		fetcher.On("FetchFlagsManifest", mock.Anything, testManifestURL).
			Return(nil, errors.Join(ErrDataDecodingFailed, errors.New("bad json")))

		svc := NewFlagsService(fetcher, testManifestURL)

		_, err := svc.FlagURL(context.Background(), "MXN")
		assert.ErrorIs(t, err, ErrDataDecodingFailed)
	})

	t.Run("context cancelled while waiting", func(t *testing.T) {
		release := make(chan time.Time)
		defer close(release)
		fetcher := new(mockManifestFetcher)
		fetcher.On("FetchFlagsManifest", mock.Anything, testManifestURL).WaitUntil(release).Return(map[string]string{}, nil)

		svc := NewFlagsService(fetcher, testManifestURL)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := svc.FlagURL(ctx, "MXN")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
