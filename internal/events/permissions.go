package events

import (
	"errors"
	"fmt"
	"strings"

	"vendosync/internal/auth"
)

var (
	ErrUnknownKey   = errors.New("unknown subscription key")
	ErrForbiddenKey = errors.New("subscription key not allowed")
)

// минимальная роль для подписки на ресурс
var permissions = map[string]auth.Role{
	ResourceVendor:      auth.Executive,
	ResourceItem:        auth.Executive,
	ResourceProcurement: auth.Executive,
	ResourceRFQ:         auth.Executive,
	ResourceUsers:       auth.Admin,
}

// Allowed сообщает, может ли роль подписаться на ресурс
func Allowed(role auth.Role, resource string) bool {
	min, ok := permissions[resource]
	return ok && role.AtLeast(min)
}

// ParseKeys разбирает список ключей "vendor,item" и проверяет права.
// Пустой список означает все ресурсы, доступные роли.
func ParseKeys(raw string, role auth.Role) ([]string, error) {
	var keys []string
	seen := make(map[string]bool)
	for _, k := range strings.Split(raw, ",") {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		if _, ok := permissions[k]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, k)
		}
		if !Allowed(role, k) {
			return nil, fmt.Errorf("%w: %s", ErrForbiddenKey, k)
		}
		keys = append(keys, k)
	}

	if len(keys) == 0 {
		for k := range permissions {
			if Allowed(role, k) {
				keys = append(keys, k)
			}
		}
	}
	return keys, nil
}
