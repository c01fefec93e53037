package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.RabbitMQ.Port = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected rejection for port 0")
	}
}

func TestValidateRejectsEmptyQueue(t *testing.T) {
	cfg := Default()
	cfg.RabbitMQ.Queue = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected rejection for empty queue name")
	}
}

func TestValidateRotationTriggers(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*RotationConfig)
		wantErr bool
	}{
		{"time below minimum", func(r *RotationConfig) { r.Trigger = RotationTime; r.Time = 60 }, true},
		{"time at minimum", func(r *RotationConfig) { r.Trigger = RotationTime; r.Time = 3600 }, false},
		{"size below minimum", func(r *RotationConfig) { r.Trigger = RotationSize; r.Size = 10 }, true},
		{"size at minimum", func(r *RotationConfig) { r.Trigger = RotationSize; r.Size = 1024 }, false},
		{"daily bad format", func(r *RotationConfig) { r.Trigger = RotationDaily; r.Daily = "25:61" }, true},
		{"daily ok", func(r *RotationConfig) { r.Trigger = RotationDaily; r.Daily = "23:59" }, false},
		{"lines zero", func(r *RotationConfig) { r.Trigger = RotationLines; r.Lines = 0 }, true},
		{"lines ok", func(r *RotationConfig) { r.Trigger = RotationLines; r.Lines = 1 }, false},
		{"unknown trigger", func(r *RotationConfig) { r.Trigger = "bogus" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg.Files.Rotation)
			err := Validate(cfg)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got none")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateArchiveTriggers(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*ArchiveConfig)
		wantErr bool
	}{
		{"count zero", func(a *ArchiveConfig) { a.Trigger = ArchiveCount; a.Count = 0 }, true},
		{"count ok", func(a *ArchiveConfig) { a.Trigger = ArchiveCount; a.Count = 1 }, false},
		{"age below minimum", func(a *ArchiveConfig) { a.Trigger = ArchiveAge; a.Age = 100 }, true},
		{"age at minimum", func(a *ArchiveConfig) { a.Trigger = ArchiveAge; a.Age = 24400 }, false},
		{"unknown type", func(a *ArchiveConfig) { a.Type = "rar" }, true},
		{"level out of range", func(a *ArchiveConfig) { a.CompressionLevel = 10 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg.Files.Archive)
			err := Validate(cfg)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got none")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}
