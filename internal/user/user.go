// Package user owns the user directory behind order placement.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordersaga/internal/events"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidUser  = errors.New("invalid user")
)

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewUser(cmd events.UserUpsertCommand, now time.Time) (*User, error) {
	if cmd.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidUser)
	}
	return &User{
		ID:        cmd.UserID,
		Name:      cmd.Name,
		Email:     cmd.Email,
		UpdatedAt: now,
	}, nil
}

func (u *User) Upserted() events.UserUpserted {
	return events.UserUpserted{UserID: u.ID, Name: u.Name, Email: u.Email}
}

type Repository interface {
	Upsert(ctx context.Context, u *User) error
	// Get returns the user or ErrUserNotFound.
	Get(ctx context.Context, userID string) (*User, error)
}
