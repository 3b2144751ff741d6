package client

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"alignbox_chat/internal/models"
)

func msgAt(id uint64, at time.Time) models.Message {
	return models.Message{ID: id, Message: "m", CreatedAt: at}
}

func TestTimelineDeduplicatesAndOrders(t *testing.T) {
	req := require.New(t)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tl := NewTimeline()

	tl.Seed([]models.Message{msgAt(1, base), msgAt(2, base.Add(time.Second))})
	req.False(tl.Add(msgAt(2, base.Add(time.Second))), "POST response and push event carry the same id")
	req.True(tl.Add(msgAt(4, base.Add(2*time.Second))))
	// 同一時間以 id 排序
	req.True(tl.Add(msgAt(3, base.Add(2*time.Second))))

	ids := lo.Map(tl.Messages(), func(m models.Message, _ int) uint64 { return m.ID })
	req.Equal([]uint64{1, 2, 3, 4}, ids)

	tl.Seed([]models.Message{msgAt(9, base)})
	req.Equal(1, tl.Len())
	req.True(tl.Add(msgAt(1, base)), "seed resets seen ids")
}

func TestDisplayRules(t *testing.T) {
	ann := models.Message{UserID: lo.ToPtr("u1"), Username: lo.ToPtr("Ann")}
	anon := models.Message{UserID: lo.ToPtr("u2"), Username: lo.ToPtr("Bob"), Anonymous: true}
	nameless := models.Message{}

	tests := []struct {
		name      string
		msg       models.Message
		me        string
		direction Direction
		display   string
		avatar    bool
	}{
		{"own message", ann, "u1", Outgoing, "Ann", false},
		{"named other", ann, "u9", Incoming, "Ann", true},
		{"anonymous other", anon, "u1", Incoming, "Anonymous", false},
		{"own anonymous", anon, "u2", Outgoing, "Anonymous", false},
		{"no username", nameless, "u1", Incoming, "Unknown", false},
		{"no current user", ann, "", Incoming, "Ann", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.direction, DirectionOf(tt.msg, tt.me))
			require.Equal(t, tt.display, DisplayName(tt.msg))
			require.Equal(t, tt.avatar, ShowAvatar(tt.msg, tt.me))
		})
	}
}

func TestFormatTime(t *testing.T) {
	at := time.Date(2025, 1, 1, 15, 4, 0, 0, time.UTC)
	require.Equal(t, "03:04 PM", FormatTime(at, time.UTC))
	require.Equal(t, "outgoing", Outgoing.String())
}
