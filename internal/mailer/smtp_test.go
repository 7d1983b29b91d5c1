package mailer

import (
	"bytes"
	"strings"
	"testing"
)

func TestTemplatesParseAndRender(t *testing.T) {
	p, err := NewSMTP(Config{Host: "localhost", Port: 1025, From: "noreply@example.com"})
	if err != nil {
		t.Fatalf("failed to build provider: %v", err)
	}

	cases := []struct {
		name string
		data map[string]interface{}
		want string
	}{
		{
			"verify_email",
			map[string]interface{}{"name": "Alice", "org_name": "Panadería El Sol", "link": "http://localhost/verify?token=x", "ttl": "24h"},
			"http://localhost/verify?token=x",
		},
		{
			"reset_password",
			map[string]interface{}{"name": "Alice", "link": "http://localhost/reset?token=x", "ttl": "1h"},
			"http://localhost/reset?token=x",
		},
		{
			"invite_member",
			map[string]interface{}{"name": "Bob", "org_name": "Panadería El Sol", "role": "user", "link": "http://localhost/activate?token=x", "ttl": "168h"},
			"http://localhost/activate?token=x",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body bytes.Buffer
			if err := p.templates.ExecuteTemplate(&body, tc.name+".html", tc.data); err != nil {
				t.Fatalf("render failed: %v", err)
			}
			if !strings.Contains(body.String(), tc.want) {
				t.Fatalf("expected rendered body to contain %q", tc.want)
			}
		})
	}
}

func TestTemplateEscapesData(t *testing.T) {
	p, err := NewSMTP(Config{})
	if err != nil {
		t.Fatalf("failed to build provider: %v", err)
	}

	var body bytes.Buffer
	err = p.templates.ExecuteTemplate(&body, "verify_email.html", map[string]interface{}{
		"name":     "<script>alert(1)</script>",
		"org_name": "Org",
		"link":     "http://localhost/verify",
		"ttl":      "24h",
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(body.String(), "<script>alert(1)</script>") {
		t.Fatal("expected template data to be escaped")
	}
}
