package config

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

func TestGetters(t *testing.T) {
	c := map[string]string{
		"FLAG":    "true",
		"BADFLAG": "maybe",
		"SECS":    "15",
		"ZERO":    "0",
		"LIST":    " a, ,b ,c",
		"EMPTY":   " , ",
	}

	if !GetBool(c, "FLAG", false) || !GetBool(c, "BADFLAG", true) || GetBool(c, "MISSING", false) {
		t.Fatal("GetBool returned unexpected values")
	}
	if got := GetSeconds(c, "SECS", time.Minute); got != 15*time.Second {
		t.Fatalf("GetSeconds = %v", got)
	}
	if got := GetSeconds(c, "ZERO", time.Minute); got != time.Minute {
		t.Fatalf("GetSeconds with zero = %v", got)
	}
	if got := GetList(c, "LIST", nil); strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("GetList = %v", got)
	}
	if got := GetList(c, "EMPTY", []string{"d"}); len(got) != 1 || got[0] != "d" {
		t.Fatalf("GetList default = %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(map[string]string{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.StorageBackend != StorageFile || s.SessionBackend != SessionsCookie || s.UploadBackend != UploadsDisk {
		t.Fatalf("unexpected backends: %+v", s)
	}
	if s.StoreTimeout != 10*time.Second || s.UploadTimeout != 30*time.Second {
		t.Fatalf("unexpected timeouts: %v %v", s.StoreTimeout, s.UploadTimeout)
	}
	if s.SessionMaxAge != 7*24*time.Hour {
		t.Fatalf("unexpected session max age %v", s.SessionMaxAge)
	}
	if len(s.SessionSecret) != 32 {
		t.Fatalf("expected a generated 32 byte session secret, got %d bytes", len(s.SessionSecret))
	}
	if s.SecureCookies {
		t.Fatal("cookies should not be Secure outside production")
	}
}

func TestLoadProductionDefaultsToSecureCookies(t *testing.T) {
	s, err := Load(map[string]string{"ENVIRONMENT": "production"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.SecureCookies || !s.IsProduction() {
		t.Fatal("expected secure cookies in production")
	}
}

func TestLoadRejectsIncompleteBackends(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown storage":        {"STORAGE_BACKEND": "mongo"},
		"postgres without url":   {"STORAGE_BACKEND": "postgres"},
		"s3 without bucket":      {"STORAGE_BACKEND": "s3"},
		"redis without url":      {"SESSION_BACKEND": "redis"},
		"s3 uploads without url": {"UPLOAD_BACKEND": "s3", "S3_BUCKET": "b"},
		"short secret":           {"SESSION_SECRET": "short"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(env); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

type fakeParameters struct {
	pages [][]types.Parameter
	calls int
	err   error
}

func (f *fakeParameters) GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	page := f.pages[f.calls]
	f.calls++
	out := &ssm.GetParametersByPathOutput{Parameters: page}
	if f.calls < len(f.pages) {
		out.NextToken = aws.String("next")
	}
	return out, nil
}

func TestLoadSSMSecrets(t *testing.T) {
	client := &fakeParameters{pages: [][]types.Parameter{
		{{Name: aws.String("/portfolio/prod/admin-key"), Value: aws.String("from-ssm")}},
		{{Name: aws.String("/portfolio/prod/session_secret"), Value: aws.String("ssm-secret")}},
	}}
	c := map[string]string{"SESSION_SECRET": "from-env"}

	if err := LoadSSMSecrets(context.Background(), client, "/portfolio/prod", c); err != nil {
		t.Fatalf("LoadSSMSecrets: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected both pages to be read, got %d calls", client.calls)
	}
	if c["ADMIN_KEY"] != "from-ssm" {
		t.Fatalf("ADMIN_KEY = %q", c["ADMIN_KEY"])
	}
	if c["SESSION_SECRET"] != "from-env" {
		t.Fatalf("environment should win over SSM, got %q", c["SESSION_SECRET"])
	}
}

func TestLoadSSMSecretsErrors(t *testing.T) {
	client := &fakeParameters{err: errors.New("access denied")}
	if err := LoadSSMSecrets(context.Background(), client, "/portfolio", map[string]string{}); err == nil {
		t.Fatal("expected error")
	}
	if err := LoadSSMSecrets(context.Background(), client, "", map[string]string{}); err != nil {
		t.Fatalf("empty prefix should be a no-op, got %v", err)
	}
}
