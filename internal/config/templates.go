package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		return clientTemplate, nil
	case "server":
		return serverTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const clientTemplate = `host = "127.0.0.1"
port = 4455
tls = false
ca_file = ""
server_name = ""
key_dir = "keys"
user = ""
read_timeout_seconds = 120
`

const serverTemplate = `addr = ":4455"
admin_addr = ":9100"
db_path = "passvault.db"
tls_cert_file = ""
tls_key_file = ""
session_ttl_seconds = 10800
`
