package updatesender

import (
	"net/url"
	"strconv"

	"github.com/okian/scorecast/internal/domain/model"
)

// updateKeyParam carries the shared secret in an update request.
const updateKeyParam = "updateKey"

// buildForm returns the form for the seq-th update of a run. Fields set on
// the command line win over generated ones, except startNumber which always
// follows seq so displays can tell updates apart.
func buildForm(cfg *Config, seq int) url.Values {
	form := url.Values{}
	form.Set(model.KeyFullName, "Athlete "+strconv.Itoa(seq))
	form.Set(model.KeyAttempt, strconv.Itoa((seq-1)%3+1))

	for k, v := range cfg.Fields {
		form.Set(k, v)
	}

	form.Set(model.KeyStartNumber, strconv.Itoa(seq))
	form.Set(updateKeyParam, cfg.Key)
	return form
}
