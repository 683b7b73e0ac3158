package settings

// Kind is a configuration category handled by the registry
type Kind string

const (
	KindRole       Kind = "role"
	KindPermission Kind = "permission"
	KindWorkflow   Kind = "workflow"
	KindForm       Kind = "form"
	KindLanguage   Kind = "language"
)

// AllKinds lists the recognized kinds in display order
var AllKinds = []Kind{KindRole, KindPermission, KindWorkflow, KindForm, KindLanguage}

var collections = map[Kind]string{
	KindRole:       "roles",
	KindPermission: "permissions",
	KindWorkflow:   "workflows",
	KindForm:       "forms",
	KindLanguage:   "languages",
}

// ParseKind returns the Kind named by s, or *InvalidKindError
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := collections[k]; !ok {
		return "", &InvalidKindError{Kind: s}
	}
	return k, nil
}

// CollectionFor returns the store collection backing kind
func CollectionFor(kind Kind) (string, bool) {
	c, ok := collections[kind]
	return c, ok
}

// HasConfig reports whether rows of kind carry a structured config document
func (k Kind) HasConfig() bool {
	return k == KindWorkflow || k == KindForm
}

func (k Kind) String() string {
	return string(k)
}
