package settings_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"interviewprep/internal/settings"
)

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", settings.MaskKey(""))
	assert.Equal(t, "***", settings.MaskKey("abc"))
	assert.Equal(t, "****", settings.MaskKey("abcd"))
	assert.Equal(t, "****efgh", settings.MaskKey("abcdefgh"))
}

func TestService_Update_KeepsStoredKey(t *testing.T) {
	ctx := context.Background()

	for _, key := range []string{"", "******1234"} {
		mockRepo := new(MockRepository)
		svc := settings.NewService(mockRepo)

		mockRepo.On("Get", ctx).Return(&settings.Settings{GeminiAPIKey: "stored-1234"}, nil).Once()
		mockRepo.On("Update", ctx, mock.MatchedBy(func(s *settings.Settings) bool {
			return s.GeminiAPIKey == "stored-1234" && s.DefaultLanguage == "en"
		})).Return(nil).Once()

		err := svc.Update(ctx, &settings.Settings{GeminiAPIKey: key, DefaultLanguage: "en"})
		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	}
}

func TestService_Update_LoadError(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := settings.NewService(mockRepo)
	mockRepo.On("Get", mock.Anything).Return(nil, errors.New("db down"))

	err := svc.Update(context.Background(), &settings.Settings{})
	assert.ErrorContains(t, err, "failed to load current settings")
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestService_SeedAPIKey(t *testing.T) {
	ctx := context.Background()

	t.Run("Seeds Empty Row", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := settings.NewService(mockRepo)
		mockRepo.On("Get", ctx).Return(&settings.Settings{DefaultLanguage: "en"}, nil)
		mockRepo.On("Update", ctx, mock.MatchedBy(func(s *settings.Settings) bool {
			return s.GeminiAPIKey == "env-key" && s.DefaultLanguage == "en"
		})).Return(nil)

		assert.NoError(t, svc.SeedAPIKey(ctx, "env-key"))
		mockRepo.AssertExpectations(t)
	})

	t.Run("Keeps Configured Key", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := settings.NewService(mockRepo)
		mockRepo.On("Get", ctx).Return(&settings.Settings{GeminiAPIKey: "ui-key"}, nil)

		assert.NoError(t, svc.SeedAPIKey(ctx, "env-key"))
		mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("No Env Key", func(t *testing.T) {
		mockRepo := new(MockRepository)
		assert.NoError(t, settings.NewService(mockRepo).SeedAPIKey(ctx, ""))
		mockRepo.AssertNotCalled(t, "Get", mock.Anything)
	})
}
