package personalizer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/osteele/liquid"

	"github.com/photoreach/club-outreach/internal/domain"
)

// Built-in templates used when the template directory has no file for an
// email type. Operators override by dropping <type>.liquid into the dir.
var defaultTemplates = map[domain.EmailType]string{
	domain.EmailIntroduction: `Hi {{ contact_name | default: "there" }},

My name is {{ sender_name }} and I work on partnerships at PhotoReach.

{{ personalization }}

We offer photography clubs like {{ club_name }} free licenses of our editing suite for club competitions and workshops. Would you be open to a short call to see if this could benefit your members?

Best regards,
{{ sender_name }}`,

	domain.EmailCheckup: `Hi {{ contact_name | default: "there" }},

I reached out a little while ago about a partnership between PhotoReach and {{ club_name }}.

{{ personalization }}

I'd still love to find a time to talk it through. Is there a better person at the club to speak with?

Best regards,
{{ sender_name }}`,

	domain.EmailAcceptance: `Hi {{ contact_name | default: "there" }},

Fantastic news, and welcome aboard!

{{ personalization }}

I've attached the next steps for getting {{ club_name }} members set up with their licenses. Let me know how you'd prefer to announce this to the club.

Best regards,
{{ sender_name }}`,
}

// Templates renders the per-email-type Liquid templates.
type Templates struct {
	engine *liquid.Engine
	dir    string
}

// NewTemplates creates the template renderer backed by dir. The dir may be
// empty or missing; built-in templates cover the gaps.
func NewTemplates(dir string) *Templates {
	engine := liquid.NewEngine()

	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	return &Templates{engine: engine, dir: dir}
}

// Render merges the bindings into the template for the given email type.
func (t *Templates) Render(emailType domain.EmailType, bindings map[string]interface{}) (string, error) {
	source, err := t.source(emailType)
	if err != nil {
		return "", err
	}

	out, err := t.engine.ParseAndRenderString(source, bindings)
	if err != nil {
		return "", fmt.Errorf("rendering %s template: %w", emailType, err)
	}
	return strings.TrimSpace(out) + "\n", nil
}

func (t *Templates) source(emailType domain.EmailType) (string, error) {
	if t.dir != "" {
		path := filepath.Join(t.dir, string(emailType)+".liquid")
		if data, err := os.ReadFile(path); err == nil {
			return string(data), nil
		}
	}

	source, ok := defaultTemplates[emailType]
	if !ok {
		return "", fmt.Errorf("no template for email type %q", emailType)
	}
	return source, nil
}
