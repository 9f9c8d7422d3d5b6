package entities

// Ecosystem identifies a package-management scope with its own manifest format and tooling.
type Ecosystem string

const (
	EcosystemRust          Ecosystem = "rust"
	EcosystemPython        Ecosystem = "python"
	EcosystemGolang        Ecosystem = "golang"
	EcosystemGitHubActions Ecosystem = "github-actions"
	EcosystemTerraform     Ecosystem = "terraform"
)

// DisplayName is the heading used for the ecosystem in commit messages and proposals.
func (e Ecosystem) DisplayName() string {
	switch e {
	case EcosystemRust:
		return "Rust"
	case EcosystemPython:
		return "Python"
	case EcosystemGolang:
		return "Go"
	case EcosystemGitHubActions:
		return "GitHub Actions"
	case EcosystemTerraform:
		return "Terraform"
	default:
		return string(e)
	}
}

// UpdateType is the magnitude of a version bump.
type UpdateType string

const (
	UpdateTypeMajor   UpdateType = "major"
	UpdateTypeMinor   UpdateType = "minor"
	UpdateTypePatch   UpdateType = "patch"
	UpdateTypeUnknown UpdateType = "unknown"
)

// ParseUpdateType maps a user-supplied string to an UpdateType.
// The second return value is false for anything that is not one of the four known types.
func ParseUpdateType(raw string) (UpdateType, bool) {
	switch UpdateType(raw) {
	case UpdateTypeMajor, UpdateTypeMinor, UpdateTypePatch, UpdateTypeUnknown:
		return UpdateType(raw), true
	default:
		return "", false
	}
}

// Update is a single proposed version bump for one dependency in one ecosystem.
type Update struct {
	Ecosystem      Ecosystem
	Name           string // unique within an ecosystem only
	CurrentVersion string
	LatestVersion  string
	ManifestPath   string // repository-relative path of the file to patch
}

// NewUpdate builds an Update. The second return value is false when both versions are
// equal, since a no-op bump must never leave a discoverer.
func NewUpdate(ecosystem Ecosystem, name, current, latest, manifestPath string) (Update, bool) {
	if current == latest {
		return Update{}, false
	}
	return Update{
		Ecosystem:      ecosystem,
		Name:           name,
		CurrentVersion: current,
		LatestVersion:  latest,
		ManifestPath:   manifestPath,
	}, true
}

// Type classifies the update. It is recomputed on every call.
func (u Update) Type() UpdateType {
	return ClassifyUpdate(u.CurrentVersion, u.LatestVersion)
}

// UpdateBatch is the ordered, filtered set of updates selected for one workflow run.
// The slice is copied on construction and never handed out for mutation.
type UpdateBatch struct {
	updates []Update
}

// NewUpdateBatch copies the given updates into an immutable batch, preserving order.
func NewUpdateBatch(updates []Update) UpdateBatch {
	copied := make([]Update, len(updates))
	copy(copied, updates)
	return UpdateBatch{updates: copied}
}

// Len returns the number of updates in the batch.
func (b UpdateBatch) Len() int { return len(b.updates) }

// IsEmpty reports whether the batch holds no updates.
func (b UpdateBatch) IsEmpty() bool { return len(b.updates) == 0 }

// Updates returns a copy of the updates in batch order.
func (b UpdateBatch) Updates() []Update {
	copied := make([]Update, len(b.updates))
	copy(copied, b.updates)
	return copied
}

// EcosystemGroup is every update of one ecosystem, in batch order.
type EcosystemGroup struct {
	Ecosystem Ecosystem
	Updates   []Update
}

// GroupByEcosystem returns one group per ecosystem, ordered by the first appearance of each
// ecosystem in the batch.
func (b UpdateBatch) GroupByEcosystem() []EcosystemGroup {
	var groups []EcosystemGroup
	index := make(map[Ecosystem]int)
	for _, update := range b.updates {
		i, ok := index[update.Ecosystem]
		if !ok {
			i = len(groups)
			index[update.Ecosystem] = i
			groups = append(groups, EcosystemGroup{Ecosystem: update.Ecosystem})
		}
		groups[i].Updates = append(groups[i].Updates, update)
	}
	return groups
}

// Ecosystems returns the distinct ecosystems touched by the batch, in first-appearance order.
func (b UpdateBatch) Ecosystems() []Ecosystem {
	groups := b.GroupByEcosystem()
	result := make([]Ecosystem, 0, len(groups))
	for _, group := range groups {
		result = append(result, group.Ecosystem)
	}
	return result
}
