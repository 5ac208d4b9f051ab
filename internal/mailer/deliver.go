package mailer

import (
	"context"
	"errors"
	"fmt"

	logpkg "github.com/benvon/contact-relay/internal/logger"
	"github.com/benvon/contact-relay/internal/metrics"
	"go.uber.org/zap"
)

// Recipient identifies which destination accepted a message.
type Recipient string

const (
	RecipientPrimary Recipient = "primary"
	RecipientBackup  Recipient = "backup"
)

// Result describes a completed delivery.
type Result struct {
	Recipient Recipient
	Attempts  int
}

// Deliverer sends to a primary address and, on failure, makes exactly one
// more attempt to an optional backup address. There is no other retry.
type Deliverer struct {
	transport Transport
	primary   string
	backup    string
	logger    *zap.Logger
}

// NewDeliverer creates a Deliverer. backup may be empty.
func NewDeliverer(transport Transport, primary, backup string, logger *zap.Logger) *Deliverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deliverer{
		transport: transport,
		primary:   primary,
		backup:    backup,
		logger:    logger,
	}
}

// Primary returns the primary recipient address.
func (d *Deliverer) Primary() string { return d.primary }

// HasBackup reports whether a backup recipient is configured.
func (d *Deliverer) HasBackup() bool { return d.backup != "" }

// Deliver sends msg to the primary recipient, then to the backup if the first
// attempt failed. msg.To is overwritten for each attempt; everything else is
// identical. The returned error wraps ErrDeliveryFailed.
func (d *Deliverer) Deliver(ctx context.Context, msg Message) (Result, error) {
	primaryErr := d.transport.Send(ctx, msg.WithRecipient(d.primary))
	metrics.ObserveDelivery(string(RecipientPrimary), primaryErr == nil)
	if primaryErr == nil {
		return Result{Recipient: RecipientPrimary, Attempts: 1}, nil
	}

	d.logger.Error("contact_primary_delivery_failed",
		zap.String("error", logpkg.SanitizeError(primaryErr)),
		zap.Bool("backup_configured", d.HasBackup()),
	)

	if !d.HasBackup() {
		return Result{Attempts: 1}, errors.Join(ErrDeliveryFailed, fmt.Errorf("primary: %w", primaryErr))
	}

	backupErr := d.transport.Send(ctx, msg.WithRecipient(d.backup))
	metrics.ObserveDelivery(string(RecipientBackup), backupErr == nil)
	if backupErr != nil {
		d.logger.Error("contact_backup_delivery_failed",
			zap.String("error", logpkg.SanitizeError(backupErr)),
		)
		return Result{Attempts: 2}, errors.Join(ErrDeliveryFailed,
			fmt.Errorf("primary: %w", primaryErr),
			fmt.Errorf("backup: %w", backupErr),
		)
	}

	d.logger.Info("contact_backup_delivery_succeeded")
	return Result{Recipient: RecipientBackup, Attempts: 2}, nil
}
