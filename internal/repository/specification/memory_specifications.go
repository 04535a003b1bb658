package specification

import (
	"strings"

	"gorm.io/gorm"
)

// UnderNamespace matches the namespace itself and every nested namespace.
type UnderNamespace struct {
	Namespace string
}

func (s UnderNamespace) Apply(db *gorm.DB) *gorm.DB {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s.Namespace)
	return db.Where("namespace = ? OR namespace LIKE ?", s.Namespace, escaped+".%")
}

type ByNamespaceKey struct {
	Namespace string
	Key       string
}

func (s ByNamespaceKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("namespace = ? AND key = ?", s.Namespace, s.Key)
}
