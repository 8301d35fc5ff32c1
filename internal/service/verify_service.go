package service

import (
	"context"
	"errors"

	"github.com/mosaichq/license-api/internal/domain/license"
	"github.com/mosaichq/license-api/internal/domain/trial"
	"github.com/mosaichq/license-api/internal/ierr"
	"github.com/mosaichq/license-api/internal/keycodec"
	"github.com/mosaichq/license-api/internal/metrics"
	"go.uber.org/zap"
)

const (
	ReasonNoKey            = "no_key"
	ReasonNotFound         = "not_found"
	ReasonCanceled         = "canceled"
	ReasonTrialAlreadyUsed = "trial_already_used"
)

type Verdict struct {
	Valid  bool
	Status license.Status
	Reason string
}

// VerifyService answers whether a presented key currently grants access.
// It never mutates license state; its only side effect is recording the
// first trial use of a device.
type VerifyService struct {
	licenses license.Repository
	trials   trial.Repository
	codec    *keycodec.Codec
	logger   *zap.Logger
}

func NewVerifyService(licenses license.Repository, trials trial.Repository, codec *keycodec.Codec, logger *zap.Logger) *VerifyService {
	return &VerifyService{
		licenses: licenses,
		trials:   trials,
		codec:    codec,
		logger:   logger.Named("VerifyService"),
	}
}

func (s *VerifyService) Verify(ctx context.Context, plainKey, deviceID string) (*Verdict, error) {
	if plainKey == "" {
		return s.verdict(&Verdict{Valid: false, Reason: ReasonNoKey}), nil
	}

	fingerprint := s.codec.Fingerprint(plainKey)

	lic, err := s.licenses.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, ierr.ErrNotFound) {
			// A miss is a negative answer, not a failure.
			return s.verdict(&Verdict{Valid: false, Reason: ReasonNotFound}), nil
		}
		return nil, err
	}

	if lic.Status == license.StatusCanceled {
		return s.verdict(&Verdict{Valid: false, Status: lic.Status, Reason: ReasonCanceled}), nil
	}

	if lic.IsTrialPlan() && deviceID != "" {
		err := s.trials.Record(ctx, fingerprint, deviceID)
		if err != nil {
			if errors.Is(err, ierr.ErrConflict) {
				s.logger.Info("Trial re-use denied", zap.String("device_id", deviceID))
				return s.verdict(&Verdict{Valid: false, Status: lic.Status, Reason: ReasonTrialAlreadyUsed}), nil
			}
			return nil, err
		}
	}

	if lic.Status != license.StatusActive {
		return s.verdict(&Verdict{Valid: false, Status: lic.Status}), nil
	}

	return s.verdict(&Verdict{Valid: true, Status: lic.Status}), nil
}

func (s *VerifyService) verdict(v *Verdict) *Verdict {
	result := "valid"
	if !v.Valid {
		result = v.Reason
		if result == "" {
			result = string(v.Status)
		}
	}
	metrics.VerificationsTotal.WithLabelValues(result).Inc()
	return v
}
