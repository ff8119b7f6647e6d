package logger

import "github.com/google/uuid"

func generateRequestID() string {
	return uuid.NewString()
}
