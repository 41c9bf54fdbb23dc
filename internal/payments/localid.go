package payments

import (
	"strings"

	"github.com/google/uuid"
)

const (
	consultationPrefix = "consul"
	productPrefix      = "prod"
)

// ConsultationLocalID renders consul_<userId>_<sessionId>.
func ConsultationLocalID(userID, sessionID uuid.UUID) string {
	return consultationPrefix + "_" + userID.String() + "_" + sessionID.String()
}

func productLocalID(orderID uuid.UUID) string {
	return productPrefix + "_" + orderID.String()
}

// ParseConsultationLocalID is the fallback correlation for transactions created
// before payment intents were recorded.
func ParseConsultationLocalID(localID string) (userID, sessionID uuid.UUID, ok bool) {
	parts := strings.Split(strings.TrimSpace(localID), "_")
	if len(parts) != 3 || parts[0] != consultationPrefix {
		return uuid.Nil, uuid.Nil, false
	}
	u, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	s, err := uuid.Parse(parts[2])
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return u, s, true
}
