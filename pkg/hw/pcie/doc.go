/*
PCIe 交换芯片延迟重扫说明

一、问题背景
 某些交换芯片（比如 RK3588 平台外挂的 PCIe switch）上电后，
 上行口很快能被根桥看到，但下行口的链路训练要多花几秒。
 如果系统启动时就扫总线，下行口后面的设备一个都扫不到，
 之后也不会有人再去扫，这些设备就永远丢了。

 解决办法是晚一点再扫一次：等一个固定延迟（默认 3000 ms），
 此时链路基本都训练完了，再对目标根总线做一次完整重扫。

二、重扫的四个阶段
 1. 发现（Discover）
    重新枚举 sysfs 下的设备目录，把新出现的设备挂进拓扑树。
 2. 分配（Assign）
    自顶向下给每个设备分配内存/IO 窗口：
    叶子按自己的 BAR 需求对齐后拿一段，桥拿子树需求之和。
    内存窗口 1 MiB 对齐，IO 窗口 4 KiB 对齐。
 3. 编程（Program）
    先序遍历拓扑树，把分配结果写进每个桥的窗口寄存器：
      MEMORY_BASE/LIMIT (0x20/0x22)  取地址的 [31:20] 位
      IO_BASE/LIMIT     (0x1C/0x1D)  取地址的 [15:12] 位
    空窗口绝对不写。最后置起命令寄存器的
    MEMORY(0x0002) 和 MASTER(0x0004) 位，打开转发。
 4. 激活（Activate）
    按 vendor:device 匹配已注册的驱动并绑定。

 任何一个阶段失败整个重扫就标记为失败，不做部分回滚，
 留着现场方便人工检查。

三、使用方法
 真机：
   $ pcietool pcie rescan --domain 4 --bus 0x40 --delay-ms 3000
 本地验证（mock 一棵训练慢的交换芯片拓扑）：
   $ pcietool pcie rescan --sysfs-root /tmp/pci_mock \
       --mock-scenario switch-late-train --view tree --show-diff
 只看拓扑不动硬件：
   $ pcietool pcie topo --view both --dot-file topo.dot

四、取消语义
 收到 SIGINT/SIGTERM 时取消调度：
  - 还没到点：定时器直接停掉，重扫不会发生。
  - 已经开跑：等它整个跑完再退出，绝不能扫到一半被掐断。

:TODO: 支持同时监控多个根总线（现在一次只能盯一个）
*/
package pcie
