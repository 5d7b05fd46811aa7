package opensandbox

// Host is the host-path bind-mount backend of a Volume.
type Host struct {
	Path string `json:"path"`
}

// PVC references an existing Kubernetes PersistentVolumeClaim backend.
type PVC struct {
	ClaimName string `json:"claimName"`
}

// Volume is the wire representation of a sandbox storage mount
// (original_source sdks/sandbox/python/.../models/volume.py). ReadOnly
// and SubPath are pointers rather than plain fields so that an absent
// field on the wire (nil) round-trips distinctly from an explicit
// `false`/`""` value, matching the source SDK's Unset sentinel.
type Volume struct {
	Name      string  `json:"name"`
	MountPath string  `json:"mountPath"`
	Host      *Host   `json:"host,omitempty"`
	PVC       *PVC    `json:"pvc,omitempty"`
	ReadOnly  *bool   `json:"readOnly,omitempty"`
	SubPath   *string `json:"subPath,omitempty"`
}

func boolPtr(b bool) *bool { return &b }

func stringPtr(s string) *string { return &s }
