package engine

import "os"

// DefaultCameraDevice is the capture device probed when no video is uploaded
const DefaultCameraDevice = "/dev/video0"

// CameraAvailable reports whether the capture device node exists
func CameraAvailable(device string) bool {
	if device == "" {
		return false
	}
	_, err := os.Stat(device)
	return err == nil
}
