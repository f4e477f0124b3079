package schedule

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jwalitptl/renova-api/internal/model"
	"github.com/jwalitptl/renova-api/internal/repository"
	"github.com/jwalitptl/renova-api/pkg/errors"
)

// ErrBlockBooked is wrapped by the Conflict returned when a block already
// holds an active appointment.
var ErrBlockBooked = stderrors.New("schedule block is already booked")

// MaxTherapistResults bounds therapist searches
const MaxTherapistResults = 10

// Week is a therapist's grid for the week starting at Start
type Week struct {
	Start time.Time      `json:"week_start"`
	End   time.Time      `json:"week_end"`
	Grid  model.WeekGrid `json:"grid"`
}

// LoadWeek builds the grid of therapistID's blocks for the week containing reference.
func LoadWeek(ctx context.Context, blocks repository.ScheduleBlockRepository, therapistID int64, reference time.Time) (*Week, error) {
	start, end := WeekRange(reference)
	list, err := blocks.ListInRange(ctx, therapistID, start, end)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return &Week{Start: start, End: end, Grid: BuildWeekGrid(start, list)}, nil
}

// StoreError maps repository sentinels onto application errors. AppErrors
// pass through unchanged.
func StoreError(resource string, err error) error {
	var appErr *errors.AppError
	switch {
	case err == nil:
		return nil
	case stderrors.As(err, &appErr):
		return err
	case stderrors.Is(err, repository.ErrNotFound):
		return errors.NotFound(resource, err)
	case stderrors.Is(err, repository.ErrDuplicate):
		return errors.Conflict(resource+" already exists", err)
	default:
		return errors.Internal(err)
	}
}
