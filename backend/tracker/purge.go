package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/ravigill3969/image-converter/backend/media"
	"github.com/sirupsen/logrus"
)

// PurgeExpired deletes every row whose session ended before now, then their
// media objects. Running it again with the same now deletes nothing.
func (t *Tracker) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := t.repo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired rows: %w", err)
	}

	keys := res.MediaKeys
	for _, user := range res.Users {
		keys = append(keys, media.ArchiveKey(user))
	}
	t.deleteBestEffort(ctx, "purge", keys...)

	if res.Total() > 0 {
		t.log.WithFields(logrus.Fields{
			"originals": res.Originals,
			"derived":   res.Derived,
			"objects":   len(keys),
		}).Info("purged expired images")
	}
	return res.Total(), nil
}
