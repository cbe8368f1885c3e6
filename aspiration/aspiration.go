// Package aspiration guarda as aspirações enviadas pelo portal: modelo,
// código de rastreio, validação/sanitização da entrada e repositório gorm.
package aspiration

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("aspiration not found")
	ErrInvalidStatus = errors.New("invalid status")
)

type Status string

const (
	StatusReceived   Status = "received"
	StatusVerified   Status = "verified"
	StatusProcess    Status = "process"
	StatusFollowedUp Status = "followed_up"
	StatusFinished   Status = "finished"
	StatusRejected   Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusVerified, StatusProcess, StatusFollowedUp, StatusFinished, StatusRejected:
		return true
	}
	return false
}

// Aspiration é a linha persistida. IPHash é o token de identidade, nunca o
// endereço.
type Aspiration struct {
	ID           string `gorm:"primaryKey;size:36"`
	Namespace    string `gorm:"size:128;uniqueIndex:idx_aspiration_code"`
	TrackingCode string `gorm:"size:16;uniqueIndex:idx_aspiration_code"`
	Category     string `gorm:"size:32;index"`
	Title        string `gorm:"size:200"`
	Message      string `gorm:"type:text"`
	Image        string `gorm:"type:text"`
	Status       Status `gorm:"size:16;index"`
	AdminReply   *string
	IPHash       string `gorm:"size:64;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Aspiration) TableName() string { return "aspirations" }
