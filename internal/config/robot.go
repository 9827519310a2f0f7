// Package config provides configuration loading for go-targetlink commands.
package config

import (
	"net"
	"os"
)

// Default robot controller endpoint.
const (
	DefaultRobotIP        = "localhost"
	DefaultControllerPort = "8254"
)

// RobotIP returns the robot IP from ROBOT_IP env var.
// Falls back to the provided default if not set.
func RobotIP(defaultIP string) string {
	if ip := os.Getenv("ROBOT_IP"); ip != "" {
		return ip
	}
	return defaultIP
}

// ControllerAddr returns host:port of the robot controller's vision listener.
func ControllerAddr(robotIP string) string {
	return net.JoinHostPort(robotIP, DefaultControllerPort)
}
