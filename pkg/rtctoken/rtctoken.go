package rtctoken

import (
	"fmt"
	"time"

	rtctokenbuilder "github.com/AgoraIO-Community/go-tokenbuilder/rtctokenbuilder"
)

// Builder issues short-lived RTC credentials. The token is a pure function of
// channel, uid, role and TTL; nothing is stored.
type Builder struct {
	appID          string
	appCertificate string
	ttl            time.Duration
}

func NewBuilder(appID, appCertificate string, ttl time.Duration) *Builder {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Builder{appID: appID, appCertificate: appCertificate, ttl: ttl}
}

func (b *Builder) Configured() bool {
	return b.appID != "" && b.appCertificate != ""
}

// ChannelName derives the room name from the consultation id so both parties
// always land in the same channel.
func ChannelName(consultationID uint) string {
	return fmt.Sprintf("consultation_%d", consultationID)
}

// UID maps an identity to the numeric id the media service requires.
// Deterministic so reconnects keep the same uid.
func UID(userID uint) uint32 {
	return uint32(userID)
}

// Build returns a publisher token for the channel plus the uid it is bound to.
func (b *Builder) Build(consultationID, userID uint) (token string, uid uint32, channel string, err error) {
	channel = ChannelName(consultationID)
	uid = UID(userID)
	// the builder wants an absolute expiry timestamp, not a TTL
	expireTs := uint32(time.Now().Add(b.ttl).Unix())
	token, err = rtctokenbuilder.BuildTokenWithUID(
		b.appID, b.appCertificate, channel, uid,
		rtctokenbuilder.RolePublisher, expireTs,
	)
	if err != nil {
		return "", 0, "", err
	}
	return token, uid, channel, nil
}
