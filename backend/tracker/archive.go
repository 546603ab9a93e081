package tracker

import (
	"context"
	"fmt"
	"path"

	"github.com/ravigill3969/image-converter/backend/media"
	"github.com/ravigill3969/image-converter/backend/models"
	"github.com/sirupsen/logrus"
)

// ArchiveURL zips the original and every variant of the user and returns a
// short lived download link.
func (t *Tracker) ArchiveURL(ctx context.Context, user models.UserIdentity) (*models.ArchiveLink, error) {
	orig, err := t.GetOriginal(ctx, user)
	if err != nil {
		return nil, err
	}
	derived, err := t.ListDerived(ctx, user)
	if err != nil {
		return nil, err
	}

	base := orig.DisplayName[:len(orig.DisplayName)-len(path.Ext(orig.DisplayName))]
	entries := []media.ArchiveEntry{{Name: orig.DisplayName, Key: orig.MediaKey}}
	for i, d := range derived {
		for _, v := range d.Variants {
			entries = append(entries, media.ArchiveEntry{
				Name: fmt.Sprintf("%s-%s-%d.%s", base, d.Kind, i+1, v.Format.Extension()),
				Key:  v.MediaKey,
			})
		}
	}

	link, err := t.media.Archive(ctx, media.ArchiveKey(user), entries)
	if err != nil {
		return nil, err
	}
	t.log.WithFields(logrus.Fields{"user_id": user, "files": link.Files}).Info("archive built")
	return link, nil
}
