package dispatch

import (
	"errors"

	"newsherald/app/database"
	"newsherald/app/platform"
)

// stoppedStatus maps a permanent platform error onto its terminal job status.
// Retrying any of these cannot succeed, so they bypass the retry loop.
func stoppedStatus(err error) (database.JobStatus, bool) {
	switch {
	case errors.Is(err, platform.ErrMissingPermissions):
		return database.StatusStoppedMissingPermissions, true
	case errors.Is(err, platform.ErrUnknownChannel):
		return database.StatusStoppedUnknownChannel, true
	case errors.Is(err, platform.ErrUnknownGuild):
		return database.StatusStoppedUnknownGuild, true
	case errors.Is(err, platform.ErrMissingAccess):
		return database.StatusStoppedMissingAccess, true
	}
	return "", false
}
