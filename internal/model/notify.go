package model

// Level is the severity of a user-visible notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notifier shows transient, non-blocking notifications (toasts) to the user.
type Notifier interface {
	Notify(level Level, message string)
}

// Navigator moves the client to another route.
type Navigator interface {
	Navigate(path string)
}
