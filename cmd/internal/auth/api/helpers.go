package authapi

import (
	"net/http"
	"strings"

	"gatehouse/cmd/identity"
	"gatehouse/cmd/internal/auth/session"
	"gatehouse/cmd/security/device"
)

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

func toSessionResponse(issued session.Issued) sessionResponse {
	return sessionResponse{
		SessionID:        issued.SessionID,
		DeviceID:         issued.DeviceID,
		AccessToken:      issued.AccessToken,
		AccessExpiresAt:  issued.AccessExp,
		RefreshToken:     issued.RefreshToken,
		RefreshExpiresAt: issued.RefreshExp,
		RefreshCount:     issued.RefreshCount,
	}
}

func toSessionInfo(row session.Row, currentDevice string) sessionInfo {
	return sessionInfo{
		SessionID:        row.ID,
		DeviceID:         row.DeviceID,
		Current:          row.DeviceID == currentDevice,
		CreatedAt:        row.CreatedAt,
		LastRefreshAt:    row.LastRefreshAt,
		LastCheckAt:      row.LastCheckAt,
		RefreshExpiresAt: row.RefreshExpiresAt,
		RefreshCount:     row.RefreshCount,
		UserAgent:        row.UserAgent,
		IP:               row.IP,
	}
}

// deviceFor derives the calling device. An explicit id from the body wins over
// the user-agent/IP fingerprint; ok is false when the explicit id is malformed.
func (h *Handler) deviceFor(r *http.Request, explicit string) (session.Device, bool) {
	info := device.FromRequest(r, h.cfg.TrustProxy)
	dev := session.Device{
		ID:        info.ID,
		UserAgent: info.UserAgent,
		IP:        info.IPString(),
	}
	explicit = strings.TrimSpace(explicit)
	if explicit != "" {
		if len(explicit) > session.MaxDeviceIDLen {
			return session.Device{}, false
		}
		dev.ID = explicit
	}
	return dev, true
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	scheme, tok, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
