package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// PeerInfo is the `info` object of the RPTC configuration document (§6):
// site latitude/longitude/height and a free-text location string.
type PeerInfo struct {
	Latitude  float64 `mapstructure:"latitude" json:"latitude"`
	Longitude float64 `mapstructure:"longitude" json:"longitude"`
	Height    int     `mapstructure:"height" json:"height"`
	Location  string  `mapstructure:"location" json:"location"`
}

// PeerChannel is the `channel` object of the RPTC configuration document.
type PeerChannel struct {
	TXPower       int `mapstructure:"tx_power" json:"txPower"`
	TXOffsetMhz   float64 `mapstructure:"tx_offset_mhz" json:"txOffsetMhz"`
	ChBandwidthKhz float64 `mapstructure:"ch_bandwidth_khz" json:"chBandwidthKhz"`
	ChannelID     int `mapstructure:"channel_id" json:"channelId"`
	ChannelNo     int `mapstructure:"channel_no" json:"channelNo"`
}

// PeerRcon is the `rcon` object of the RPTC configuration document.
type PeerRcon struct {
	Password string `mapstructure:"password" json:"password"`
	Port     int    `mapstructure:"port" json:"port"`
}

// PeerDetails is the configuration advertised to the master during the
// config phase (§3 PeerDetails), serialised as the JSON body of an RPTC
// message.
type PeerDetails struct {
	Identity         string      `mapstructure:"identity" json:"identity"`
	RXFrequency      int         `mapstructure:"rx_frequency" json:"rxFrequency"`
	TXFrequency      int         `mapstructure:"tx_frequency" json:"txFrequency"`
	ExternalPeer     bool        `mapstructure:"external_peer" json:"externalPeer"`
	ConventionalPeer bool        `mapstructure:"conventional_peer" json:"conventionalPeer"`
	Info             PeerInfo    `mapstructure:"info" json:"info"`
	Channel          PeerChannel `mapstructure:"channel" json:"channel"`
	Rcon             PeerRcon    `mapstructure:"rcon" json:"rcon"`
	Software         string      `mapstructure:"software" json:"software"`
}

// PeerSession holds the session tuning knobs the session state machine
// reads at start: master endpoint, peer identity, passphrase, ping cadence,
// and the optional AES datagram-wrap key.
type PeerSession struct {
	PeerID             uint32 `mapstructure:"peer_id"`
	MasterIP           string `mapstructure:"master_ip"`
	MasterPort         int    `mapstructure:"master_port"`
	BindPort           int    `mapstructure:"bind_port"`
	Passphrase         string `mapstructure:"passphrase"`
	PingTimeSeconds    int    `mapstructure:"ping_time_seconds"`
	MaxMissedPings     int    `mapstructure:"max_missed_pings"`
	AESKeyHex          string `mapstructure:"aes_key_hex"`
}

// PeerConfig is the root document a peer process loads: its session tuning
// plus the PeerDetails it will advertise.
type PeerConfig struct {
	Session PeerSession `mapstructure:"session"`
	Details PeerDetails `mapstructure:"details"`
}

// LoadPeerConfig loads a PeerConfig from configFile (or the default search
// path) and applies the library's defaults for
// any field the file omits.
func LoadPeerConfig(configFile string) (*PeerConfig, error) {
	v := viper.New()
	setPeerDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("peer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/fne-peer")
	}

	v.SetEnvPrefix("FNE_PEER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// fine, defaults apply
		} else if os.IsNotExist(err) {
			// fine, defaults apply
		} else {
			return nil, fmt.Errorf("failed to read peer config file: %w", err)
		}
	}

	var cfg PeerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal peer config: %w", err)
	}
	if cfg.Session.MasterIP == "" {
		return nil, fmt.Errorf("peer config: session.master_ip is required")
	}
	if cfg.Session.Passphrase == "" {
		return nil, fmt.Errorf("peer config: session.passphrase is required")
	}
	return &cfg, nil
}

func setPeerDefaults(v *viper.Viper) {
	v.SetDefault("session.master_port", 62031)
	v.SetDefault("session.bind_port", 0)
	v.SetDefault("session.ping_time_seconds", 5)
	v.SetDefault("session.max_missed_pings", 5)
	v.SetDefault("details.software", "fne-peer")
}
