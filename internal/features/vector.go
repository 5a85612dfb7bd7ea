package features

import "slices"

// DefaultPermissions is the permission vocabulary of the permission vector.
var DefaultPermissions = []string{
	"android.permission.ACCESS_WIFI_STATE",
	"android.permission.READ_LOGS",
	"android.permission.CAMERA",
	"android.permission.READ_PHONE_STATE",
	"android.permission.CHANGE_NETWORK_STATE",
	"android.permission.READ_SMS",
	"android.permission.CHANGE_WIFI_STATE",
	"android.permission.RECEIVE_BOOT_COMPLETED",
	"android.permission.DISABLE_KEYGUARD",
	"android.permission.RESTART_PACKAGES",
	"android.permission.GET_TASKS",
	"android.permission.SEND_SMS",
	"android.permission.INSTALL_PACKAGES",
	"android.permission.SET_WALLPAPER",
	"android.permission.READ_CALL_LOG",
	"android.permission.SYSTEM_ALERT_WINDOW",
	"android.permission.READ_CONTACTS",
	"android.permission.WRITE_APN_SETTINGS",
	"android.permission.READ_EXTERNAL_STORAGE",
	"android.permission.WRITE_CONTACTS",
	"android.permission.READ_HISTORY_BOOKMARKS",
	"android.permission.WRITE_SETTINGS",
}

// Vector is the fixed-width feature vector of one application.
type Vector struct {
	Perms []int     `json:"perms"`
	APIs  []float64 `json:"apis"`
}

// PermissionVector marks each vocabulary entry 1 if granted, else 0.
func PermissionVector(granted, vocab []string) []int {
	out := make([]int, len(vocab))
	for i, p := range vocab {
		if slices.Contains(granted, p) {
			out[i] = 1
		}
	}
	return out
}

// APIVector lays freq out over vocab and min-max normalizes the result.
func APIVector(freq map[string]int, vocab []string) []float64 {
	raw := make([]float64, len(vocab))
	for i, api := range vocab {
		raw[i] = float64(freq[api])
	}
	return MinMax(raw)
}

// MinMax scales v into [0, 1] in place. A constant vector is left unchanged.
func MinMax(v []float64) []float64 {
	if len(v) == 0 {
		return v
	}
	lo, hi := slices.Min(v), slices.Max(v)
	if hi == lo {
		return v
	}
	for i := range v {
		v[i] = (v[i] - lo) / (hi - lo)
	}
	return v
}

// Assemble builds the feature vector from raw data.
func Assemble(d *Data, perms, apis []string) Vector {
	if len(perms) == 0 {
		perms = DefaultPermissions
	}
	return Vector{
		Perms: PermissionVector(d.Permissions, perms),
		APIs:  APIVector(d.APIs, apis),
	}
}
