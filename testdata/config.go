package testdata

var SSHConfig = []byte(`
	transport = "ssh"
	host = "build.example.com"
	port = 2222
	user = "deploy"
	key_file = "~/.ssh/id_ecdsa"
	known_hosts = "/etc/remotecli/hosts.hcl"
	revoked_keys = "/etc/remotecli/revoked.krl"
	kex = ["curve25519-sha256", "ecdh-sha2-nistp256"]
	ciphers = ["aes128-ctr"]
	macs = ["hmac-sha2-256"]
	timeout = "10s"
	metrics_address = "localhost:9101"
	aws_region = "us-east-1"
	aws_access_key = "abcdef"
	aws_secret_key = "omg123"
`)

var RexecConfig = []byte(`
	transport = "rexec"
	host = "legacy.example.com"
	user = "operator"
	password = "hunter2"
`)

var EmptyConfig = []byte(`
	transport = "telnet"
	port = 70000
`)

var TrustStore = []byte(`
host {
	name = "build.example.com"
	port = 2222
	hostkey {
		algorithm = "ssh-rsa"
		type = "md5"
		key = "d4:1d:8c:d9:8f:00:b2:04:e9:80:09:98:ec:f8:42:7e"
	}
}
`)
