package user

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/learnhub/internal/model"
)

// プロフィール項目の長さ上限（文字数）。
const (
	maxNameLength    = 100
	maxBioLength     = 500
	maxWebsiteLength = 2048
)

// handlePattern はSNSのユーザー名として許可する形式。
var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,39}$`)

// normalizeProfile はプロフィール更新の各フィールドを検証・正規化する。
// nilのフィールドはそのまま残し、空文字列は値のクリアとして扱う（nameを除く）。
func (s *Service) normalizeProfile(in model.ProfileUpdate) (model.ProfileUpdate, error) {
	var out model.ProfileUpdate

	if in.Name != nil {
		name := s.sanitizer.PlainText(*in.Name)
		if name == "" {
			return out, model.NewInvalidProfileError("name must not be empty")
		}
		if utf8.RuneCountInString(name) > maxNameLength {
			return out, model.NewInvalidProfileError("name is too long")
		}
		out.Name = &name
	}

	if in.Bio != nil {
		bio := s.sanitizer.PlainText(*in.Bio)
		if utf8.RuneCountInString(bio) > maxBioLength {
			return out, model.NewInvalidProfileError("bio is too long")
		}
		out.Bio = &bio
	}

	var err error
	if out.GitHubUsername, err = normalizeHandle(in.GitHubUsername, "github_username"); err != nil {
		return out, err
	}
	if out.TwitterUsername, err = normalizeHandle(in.TwitterUsername, "twitter_username"); err != nil {
		return out, err
	}
	if out.LinkedInUsername, err = normalizeHandle(in.LinkedInUsername, "linkedin_username"); err != nil {
		return out, err
	}

	if in.Website != nil {
		website := strings.TrimSpace(*in.Website)
		if website != "" && !validWebsite(website) {
			return out, model.NewInvalidProfileError("website must be an http(s) URL")
		}
		out.Website = &website
	}

	return out, nil
}

// normalizeHandle は先頭の"@"と前後の空白を取り除き、形式を検証する。
func normalizeHandle(in *string, field string) (*string, error) {
	if in == nil {
		return nil, nil
	}
	handle := strings.TrimPrefix(strings.TrimSpace(*in), "@")
	if handle != "" && !handlePattern.MatchString(handle) {
		return nil, model.NewInvalidProfileError(field + " has invalid characters")
	}
	return &handle, nil
}

func validWebsite(raw string) bool {
	if len(raw) > maxWebsiteLength {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
