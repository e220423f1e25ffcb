package vm

// Hierarchy exposes the superclass chain of linked classes.
type Hierarchy interface {
	SuperclassOf(cls *Class) *Class
	NameOf(cls *Class) string
}

// IsClassOrSubclass reports whether cls is named target or has an ancestor
// named target. Only the superclass chain is walked; implemented interfaces
// never match. A match at distance k from cls costs k+1 name comparisons.
func IsClassOrSubclass(h Hierarchy, cls *Class, target string) bool {
	for c := cls; c != nil; c = h.SuperclassOf(c) {
		if h.NameOf(c) == target {
			return true
		}
	}
	return false
}
