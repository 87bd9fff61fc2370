package dispatch

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/pkg/errors"
)

type FanOutResult struct {
	Rows  []*model.MessageRecipient
	Total int
}

// FanOut expands recipients × channels into pending delivery rows, skipping
// any pair without a contact value. Recipients form the outer loop. The same
// input always yields the same rows, ids included.
func FanOut(messageID uuid.UUID, recipients []model.RecipientIdentity, channels []model.Channel) (FanOutResult, error) {
	channels = uniqueChannels(channels)

	type rowKey struct {
		t  model.RecipientType
		id int64
		ch model.Channel
	}
	seen := make(map[rowKey]struct{})

	var rows []*model.MessageRecipient
	for _, r := range recipients {
		snap := r.Snapshot()
		rt := r.Type
		if rt == "" {
			rt = model.RecipientTypeMember
		}
		for _, ch := range channels {
			if snap.Contact(ch) == "" {
				continue
			}
			k := rowKey{rt, r.ID, ch}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}

			rows = append(rows, &model.MessageRecipient{
				ID:                RowID(messageID, rt, r.ID, ch),
				MessageID:         messageID,
				Seq:               len(rows),
				RecipientID:       r.ID,
				RecipientType:     rt,
				RecipientSnapshot: snap,
				Channel:           ch,
				Status:            model.DeliveryStatusPending,
			})
		}
	}

	if len(rows) == 0 {
		return FanOutResult{}, errors.NoRecipients()
	}
	return FanOutResult{Rows: rows, Total: len(rows)}, nil
}

// RowID is a name-based UUID scoped to the message.
func RowID(messageID uuid.UUID, t model.RecipientType, recipientID int64, ch model.Channel) uuid.UUID {
	return uuid.NewSHA1(messageID, []byte(fmt.Sprintf("%s:%d:%s", t, recipientID, ch)))
}

func uniqueChannels(in []model.Channel) []model.Channel {
	out := make([]model.Channel, 0, len(in))
	for _, ch := range in {
		dup := false
		for _, o := range out {
			if o == ch {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, ch)
		}
	}
	return out
}
