package enums

// ArtifactKind classifies files held in a supplier's vault.
type ArtifactKind string

const (
	ArtifactKindCertificate ArtifactKind = "CERTIFICATE"
	ArtifactKindOther       ArtifactKind = "OTHER"
)

func (k ArtifactKind) IsValid() bool {
	return k == ArtifactKindCertificate || k == ArtifactKindOther
}
