package paperless

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mfenderov/paperless-tagger/pkg/models"
)

// collect fetches first and every page after it until "next" is null.
func collect[T any](ctx context.Context, c *Client, first string) ([]T, error) {
	var all []T
	seen := make(map[string]bool)

	for next := first; next != ""; {
		if seen[next] {
			return nil, fmt.Errorf("pagination loop: %s was already fetched", next)
		}
		seen[next] = true

		var page models.Page[T]
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Results...)

		next = ""
		if page.Next != nil && *page.Next != "" {
			u, err := c.onBase(*page.Next)
			if err != nil {
				return nil, err
			}
			next = u
		}
	}

	return all, nil
}

// onBase rewrites a server-supplied page link onto the configured base URL.
// Behind a reverse proxy Paperless often reports its internal scheme and
// host; keeping the configured origin also keeps the token on that origin.
func (c *Client) onBase(link string) (string, error) {
	u, err := c.base.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid next page link %q: %w", link, err)
	}
	u.Scheme = c.base.Scheme
	u.Host = c.base.Host
	u.User = c.base.User
	return u.String(), nil
}
