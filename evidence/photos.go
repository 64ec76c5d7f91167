// Package evidence stores the pickup photo a driver takes when collecting a
// vehicle, so the client can review it before confirming the pickup.
package evidence

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/models"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const thumbWidth = 200

type BookingStore interface {
	Get(ctx context.Context, id string) (models.Booking, error)
	Update(ctx context.Context, id string, version int64, patch models.BookingPatch) (models.Booking, error)
}

type Photos struct {
	dir      string
	bookings BookingStore
	now      func() time.Time
}

func NewPhotos(dir string, bookings BookingStore) *Photos {
	return &Photos{dir: dir, bookings: bookings, now: time.Now}
}

// Photo is what SavePickupPhoto records. Path and ThumbPath are the
// authenticated download routes.
type Photo struct {
	BookingID string `json:"bookingId"`
	Path      string `json:"path"`
	ThumbPath string `json:"thumbPath"`
}

func photoRoute(bookingID string) string { return "/api/bookings/" + bookingID + "/pickup-photo" }

func uploadable(s models.BookingStatus) bool {
	return s == models.StatusAccepted || s == models.StatusPickedUpPendingConfirmation
}

// SavePickupPhoto decodes src, writes the image and a thumbnail under
// dir/pickup and records the stored file name on the booking.
func (p *Photos) SavePickupPhoto(ctx context.Context, actor models.Actor, bookingID string, src io.Reader) (Photo, error) {
	if actor.Role != models.RoleDriver {
		return Photo{}, apperr.Unauthorized()
	}
	b, err := p.bookings.Get(ctx, bookingID)
	if err != nil {
		return Photo{}, err
	}
	if b.DriverID != actor.UserID {
		return Photo{}, apperr.Unauthorized()
	}
	if !uploadable(b.Status) {
		return Photo{}, apperr.InvalidTransition("pickup photo not accepted while booking is %s", b.Status)
	}

	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return Photo{}, apperr.BadRequest("photo is not a readable image")
	}

	name := uuid.NewString() + ".jpg"
	originalDir := filepath.Join(p.dir, "pickup")
	thumbDir := filepath.Join(originalDir, "thumb")
	for _, d := range []string{originalDir, thumbDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return Photo{}, apperr.Persistence("create upload directory", err)
		}
	}
	if err := imaging.Save(img, filepath.Join(originalDir, name), imaging.JPEGQuality(85)); err != nil {
		return Photo{}, apperr.Persistence("save photo", err)
	}
	thumb := imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)
	if err := imaging.Save(thumb, filepath.Join(thumbDir, name), imaging.JPEGQuality(80)); err != nil {
		return Photo{}, apperr.Persistence("save thumbnail", err)
	}

	photo := Photo{
		BookingID: b.ID,
		Path:      photoRoute(b.ID),
		ThumbPath: photoRoute(b.ID) + "/thumb",
	}
	if _, err := p.bookings.Update(ctx, b.ID, models.AnyVersion, models.BookingPatch{
		PickupPhoto: &name,
		UpdatedAt:   p.now(),
	}); err != nil {
		return Photo{}, fmt.Errorf("record pickup photo: %w", err)
	}
	log.Printf("[Evidence] pickup photo for %s stored as %s", b.ID, name)
	return photo, nil
}

// PickupPhotoFile returns the on-disk path of a booking's pickup photo, or
// of its thumbnail, for a caller allowed to see the booking.
func (p *Photos) PickupPhotoFile(ctx context.Context, actor models.Actor, bookingID string, thumb bool) (string, error) {
	b, err := p.bookings.Get(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if !actor.CanView(b) {
		return "", apperr.Unauthorized()
	}
	if b.PickupPhoto == "" {
		return "", apperr.NotFound("pickup photo")
	}
	name := filepath.Base(b.PickupPhoto)
	if thumb {
		return filepath.Join(p.dir, "pickup", "thumb", name), nil
	}
	return filepath.Join(p.dir, "pickup", name), nil
}
