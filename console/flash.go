package console

import (
	"net/http"

	"github.com/jrsteele09/go-shop-console/internal/utils"
	"github.com/rs/zerolog/log"
)

const flashSessionName = "shop_console_flash"

// Notices carried across a redirect
const (
	flashSignedOut      = "You have been signed out"
	flashAccountCreated = "Account created, please sign in"
	flashWelcome        = "Account created, welcome!"
)

func (c *Console) addFlash(w http.ResponseWriter, r *http.Request, message string) {
	sess, err := c.cookies.Get(r, flashSessionName)
	if err != nil {
		// a cookie signed with an old key; start over
		log.Debug().Err(err).Msg("discarding unreadable flash cookie")
	}
	sess.AddFlash(message)
	if err := sess.Save(r, w); err != nil {
		log.Error().Err(err).Msg("failed to save flash")
	}
}

func (c *Console) popFlashes(w http.ResponseWriter, r *http.Request) []string {
	sess, err := c.cookies.Get(r, flashSessionName)
	if err != nil || sess.IsNew {
		return nil
	}
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := sess.Save(r, w); err != nil {
		log.Error().Err(err).Msg("failed to clear flashes")
	}
	return utils.ToStringSlice(raw)
}
