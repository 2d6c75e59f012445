package worker

import (
	"context"
	"log"
	"time"

	"qarelease/internal/service"
)

const redriveBatchSize = 50

// NotifyWorker добирает релизы в состоянии Released без уведомления склада.
// Такое состояние остаётся после сбоя уведомления или падения процесса
// между фиксацией решения и отправкой сигнала.
type NotifyWorker struct {
	service  service.ReleaseService
	interval time.Duration
	stopChan chan struct{}
	running  bool
}

func NewNotifyWorker(service service.ReleaseService, interval time.Duration) *NotifyWorker {
	return &NotifyWorker{
		service:  service,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (w *NotifyWorker) Start() {
	if w.running {
		return
	}

	w.running = true
	log.Printf("Notify Worker started with interval %v", w.interval)

	w.redrive()
	go w.run()
}

func (w *NotifyWorker) Stop() {
	if !w.running {
		return
	}

	close(w.stopChan)
	w.running = false
	log.Println("Notify Worker stopped")
}

func (w *NotifyWorker) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.redrive()
		case <-w.stopChan:
			return
		}
	}
}

func (w *NotifyWorker) redrive() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	notified, err := w.service.RedriveUnnotified(ctx, redriveBatchSize)
	if err != nil {
		log.Printf("Notify Worker error: %v", err)
		return
	}
	if notified > 0 {
		log.Printf("Notify Worker: re-sent %d warehouse notifications", notified)
	}
}
