package utils

import "net"

// GetOutboundIP 返回本机对外通信使用的 IP，用于服务注册。
// UDP Dial 不会真正发包，只让内核选出路由。
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
