package service

import (
	"fmt"
	"time"

	"github.com/99minutos/account-service/internal/core/domain"
	"github.com/99minutos/account-service/internal/core/ports"
)

const (
	TagActivation    = "activation"
	TagPasswordReset = "password_reset"
)

func activationEmail(u *domain.User, link string) ports.EmailMessage {
	return ports.EmailMessage{
		To:      u.Email,
		Subject: "Activate Your Account",
		Body:    fmt.Sprintf("Hello %s, click the link below to activate your account: %s", u.Name, link),
		Tag:     TagActivation,
	}
}

func resetEmail(u *domain.User, code string, validFor time.Duration) ports.EmailMessage {
	return ports.EmailMessage{
		To:      u.Email,
		Subject: "Password Reset Code",
		Body:    fmt.Sprintf("Hello %s, your password reset code is: %s. This code expires in %s.", u.Name, code, humanDuration(validFor)),
		Tag:     TagPasswordReset,
	}
}

// humanDuration renders d as whole hours or minutes, e.g. "1 hour", "30 minutes".
func humanDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	if d >= time.Hour && d%time.Hour == 0 {
		return plural(int(d/time.Hour), "hour")
	}
	if d >= time.Minute {
		return plural(int(d/time.Minute), "minute")
	}
	return "less than a minute"
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
