package devhub

import (
	"context"
	"errors"

	"marketplace/internal/store"
)

// LicenseDef is one of the builtin licenses developers may pick.
type LicenseDef struct {
	Builtin int    `json:"builtin"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	OnForm  bool   `json:"on_form"`
}

var builtinLicenses = []LicenseDef{
	{Builtin: 1, Name: "Mozilla Public License, version 1.1", URL: "http://www.mozilla.org/MPL/MPL-1.1.html", OnForm: true},
	{Builtin: 2, Name: "GNU General Public License, version 2.0", URL: "http://www.gnu.org/licenses/gpl-2.0.html", OnForm: true},
	{Builtin: 3, Name: "GNU General Public License, version 3.0", URL: "http://www.gnu.org/licenses/gpl-3.0.html", OnForm: true},
	{Builtin: 4, Name: "GNU Lesser General Public License, version 2.1", URL: "http://www.gnu.org/licenses/lgpl-2.1.html", OnForm: true},
	{Builtin: 5, Name: "GNU Lesser General Public License, version 3.0", URL: "http://www.gnu.org/licenses/lgpl-3.0.html", OnForm: true},
	{Builtin: 6, Name: "MIT/X11 License", URL: "http://www.opensource.org/licenses/mit-license.php", OnForm: true},
	{Builtin: 7, Name: "BSD License", URL: "http://www.opensource.org/licenses/bsd-license.php", OnForm: true},
	{Builtin: 8, Name: "Mozilla Public License, version 2.0", URL: "http://www.mozilla.org/MPL/2.0/", OnForm: false},
}

// Licenses returns the builtin licenses offered on the license step.
func Licenses() []LicenseDef {
	out := make([]LicenseDef, 0, len(builtinLicenses))
	for _, l := range builtinLicenses {
		if l.OnForm {
			out = append(out, l)
		}
	}
	return out
}

// BuiltinLicense looks up a builtin license by number.
func BuiltinLicense(builtin int) (LicenseDef, bool) {
	for _, l := range builtinLicenses {
		if l.Builtin == builtin {
			return l, true
		}
	}
	return LicenseDef{}, false
}

func (s *Service) builtinLicenseRow(ctx context.Context, def LicenseDef) (*store.License, error) {
	l, err := s.store.LicenseByBuiltin(ctx, def.Builtin)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return s.store.CreateLicense(ctx, &store.License{Builtin: def.Builtin, Name: def.Name, URL: def.URL})
}
